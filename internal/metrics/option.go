package metrics

import "strings"

// Provider names a metric reader.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	// OTLPGRPCProvider pushes to an OpenTelemetry collector over gRPC.
	OTLPGRPCProvider Provider = "otlp-grpc"
)

// NewOTLPConfig targets the collector that also receives traces. Plain
// http:// endpoints are dialed without TLS.
func NewOTLPConfig(endpoint string, headers map[string]string) ProviderCfg {
	return ProviderCfg{
		Provider: OTLPGRPCProvider,
		Endpoint: endpoint,
		Headers:  headers,
		Insecure: strings.HasPrefix(endpoint, "http://"),
	}
}

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)

		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName

		return config
	}
}
