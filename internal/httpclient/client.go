package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Connection pool settings
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	instrumentationName = "instrumented_http_client"

	metricRequests = "http_client_requests_total"
	metricDuration = "http_client_request_duration_ms"
)

// Client posts JSON documents and decodes JSON replies.
type Client interface {
	// PostJSON encodes in, POSTs it to path (relative to the base URL) and
	// decodes a 2xx body into out when out is non-nil.
	PostJSON(ctx context.Context, path string, in, out any, opts ...CallOption) (*Response, error)
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// InstrumentedClient wraps http.Client with OTEL instrumentation.
type InstrumentedClient struct {
	client   *http.Client
	options  *ClientOptions
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewInstrumentedClient creates a new instrumented client.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	options := newClientOptions(opts...)

	transport := options.roundTripper
	if transport == nil {
		transport = &http.Transport{
			DialContext: (&net.Dialer{
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			MaxConnsPerHost:       defaultMaxConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}

	httpClient := &http.Client{
		Timeout: options.timeout,
		Transport: otelhttp.NewTransport(
			transport,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}

	meter := otel.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", options.providerName)))

	requests, err := meter.Int64Counter(
		metricRequests,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		metricDuration,
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tracer := options.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &InstrumentedClient{
		client:   httpClient,
		options:  options,
		tracer:   tracer,
		requests: requests,
		duration: duration,
	}, nil
}
