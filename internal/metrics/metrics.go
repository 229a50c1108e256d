// Package metrics configures the OpenTelemetry meter provider and the
// Prometheus scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metric2 "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
	// Handler serves the Prometheus registry, or 404 when no Prometheus
	// reader is configured.
	Handler() http.Handler
}

type meterProvider struct {
	*metric2.MeterProvider
	registry *promclient.Registry
}

func (m *meterProvider) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func getReaders(ctx context.Context, cfg Config) ([]metric2.Reader, *promclient.Registry, error) {
	var readers []metric2.Reader
	var registry *promclient.Registry

	for _, provider := range cfg.Provider {
		switch provider.Provider {
		case PrometheusProvider:
			registry = promclient.NewRegistry()
			promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
			if err != nil {
				return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
			}

			readers = append(readers, promExporter)
		case OTLPGRPCProvider:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(provider.Endpoint),
				otlpmetricgrpc.WithHeaders(provider.Headers),
			}

			if provider.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}

			exp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, nil, fmt.Errorf("otlp metric exporter: %w", err)
			}

			readers = append(readers, metric2.NewPeriodicReader(exp))
		default:
			return nil, nil, fmt.Errorf("unknown metric provider %q", provider.Provider)
		}
	}

	return readers, registry, nil
}

// NewMetricProvider builds the meter provider and installs it globally.
func NewMetricProvider(ctx context.Context, options ...OptionFn) (MetricProvider, error) {
	var cfg Config

	for _, opt := range options {
		cfg = opt(cfg)
	}

	readers, registry, err := getReaders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	metricsOps := []metric2.Option{
		metric2.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName))),
	}
	for _, reader := range readers {
		metricsOps = append(metricsOps, metric2.WithReader(reader))
	}

	mp := metric2.NewMeterProvider(metricsOps...)
	otel.SetMeterProvider(mp)

	return &meterProvider{MeterProvider: mp, registry: registry}, nil
}

// Server exposes /metrics.
type Server struct {
	port     int
	provider MetricProvider
	logger   logger.LoggerInterface
	server   *http.Server
}

func NewServer(port int, provider MetricProvider, log logger.LoggerInterface) *Server {
	return &Server{port: port, provider: provider, logger: log}
}

func (s *Server) Start(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.provider.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "metrics server stopped", "error", err)
		}
	}()

	s.logger.Info(ctx, "serving metrics", "port", s.port, "path", "/metrics")
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
