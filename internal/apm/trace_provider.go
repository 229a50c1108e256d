// Package apm configures OpenTelemetry tracing.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "none"
)

// Config selects the span exporter.
type Config struct {
	ServiceName string
	Provider    Provider
	Endpoint    string
	// Headers is a comma separated list of key=value pairs sent with OTLP exports.
	Headers string
}

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error { return nil }

// NewTraceProvider installs a global tracer provider for cfg. The empty
// provider leaves the otel no-op tracer in place.
func NewTraceProvider(ctx context.Context, cfg Config, log logger.LoggerInterface) (TraceProvider, error) {
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s exporter: %w", cfg.Provider, err)
	}
	if exp == nil {
		log.Info(ctx, "tracing disabled")
		return emptyTraceProvider{}, nil
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("otel.provider", string(cfg.Provider)),
		))
	if err != nil {
		log.Warn(ctx, "trace resource merge failed, using default", "error", err)
		rsrc = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(ctx, "tracing initialized", "provider", string(cfg.Provider), "endpoint", cfg.Endpoint)
	return &traceProvider{tp}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Provider {
	case ZipkinProvider:
		return zipkin.New(cfg.Endpoint)
	case OTLPGRPCProvider:
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(cfg.Endpoint),
			otlptracegrpc.WithHeaders(ParseHeaders(cfg.Headers)))
	case OTLPHTTPProvider:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.Endpoint),
			otlptracehttp.WithHeaders(ParseHeaders(cfg.Headers)))
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case EmptyProvider, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown trace provider %q", cfg.Provider)
	}
}

// ParseHeaders splits "k1=v1,k2=v2". Malformed pairs are skipped.
func ParseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
