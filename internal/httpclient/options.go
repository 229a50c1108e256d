// Package httpclient provides an instrumented JSON-over-HTTP client with OTEL
// tracing and metrics. It is shaped for GraphQL endpoints: every call is a
// JSON POST labelled with the operation it runs.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// BodyTrace selects which payloads are attached to spans as events.
type BodyTrace uint8

const (
	TraceRequest BodyTrace = 1 << iota
	TraceResponse
)

// ClientOptions holds configuration for the instrumented client.
type ClientOptions struct {
	providerName string
	baseURL      string
	timeout      time.Duration
	roundTripper http.RoundTripper
	headers      map[string]string
	tracer       trace.Tracer
	bodyTrace    BodyTrace
}

// ClientOption configures ClientOptions.
type ClientOption func(*ClientOptions)

func newClientOptions(opts ...ClientOption) *ClientOptions {
	o := &ClientOptions{
		providerName: "default",
		timeout:      defaultRequestTimeout,
		headers: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithProviderName names the upstream in metrics and spans.
func WithProviderName(name string) ClientOption {
	return func(o *ClientOptions) {
		if name != "" {
			o.providerName = name
		}
	}
}

// WithBaseURL sets the endpoint every relative path is resolved against.
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.baseURL = url
	}
}

// WithRequestTimeout bounds each call. Non-positive values keep the default.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRoundTripper replaces the pooled transport.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *ClientOptions) {
		o.roundTripper = rt
	}
}

// WithHeaders adds headers on top of the JSON defaults.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithTracer sets the tracer and the payloads recorded on each span.
func WithTracer(tracer trace.Tracer, bodies BodyTrace) ClientOption {
	return func(o *ClientOptions) {
		o.tracer = tracer
		o.bodyTrace = bodies
	}
}

// StatusCheck turns a non-success response into an error. A nil return
// lets the body be decoded.
type StatusCheck func(statusCode int, body []byte) error

// CallOptions holds per-call configuration.
type CallOptions struct {
	operation   string
	statusCheck StatusCheck
}

// CallOption configures a single call.
type CallOption func(*CallOptions)

// WithOperation labels the call's metrics and span, e.g. the GraphQL
// operation name.
func WithOperation(name string) CallOption {
	return func(o *CallOptions) {
		o.operation = name
	}
}

// WithStatusCheck overrides the default check, which rejects any status
// outside 2xx.
func WithStatusCheck(check StatusCheck) CallOption {
	return func(o *CallOptions) {
		o.statusCheck = check
	}
}
