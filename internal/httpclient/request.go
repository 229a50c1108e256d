package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnmarshal is returned when a reply passes the status check but is
	// not valid JSON for the requested result.
	ErrUnmarshal = errors.New("httpclient: unmarshal response")
	// ErrStatus is wrapped by the default status check.
	ErrStatus = errors.New("httpclient: unexpected status")
)

const maxStatusBody = 256

// PostJSON implements Client.
func (c *InstrumentedClient) PostJSON(ctx context.Context, path string, in, out any, opts ...CallOption) (*Response, error) {
	call := &CallOptions{statusCheck: defaultStatusCheck}
	for _, opt := range opts {
		opt(call)
	}

	target := c.resolve(path)
	ctx, span := c.tracer.Start(ctx, "http.post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", target),
			attribute.String("provider", c.options.providerName),
			attribute.String("operation", call.operation),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, span, target, in, out, call)
	c.record(ctx, call.operation, err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.annotate(span, err)
	}
	return resp, err
}

func (c *InstrumentedClient) do(ctx context.Context, span trace.Span, target string, in, out any, call *CallOptions) (*Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	if c.options.bodyTrace&TraceRequest != 0 {
		span.AddEvent("request.body", trace.WithAttributes(
			attribute.String("http.request_body", string(payload)),
		))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.options.headers {
		req.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
	if c.options.bodyTrace&TraceResponse != 0 {
		span.AddEvent("response.body", trace.WithAttributes(
			attribute.String("http.response_body", string(body)),
		))
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: body}
	if err := call.statusCheck(httpResp.StatusCode, body); err != nil {
		return resp, err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("%w: %v", ErrUnmarshal, err)
		}
	}
	return resp, nil
}

func (c *InstrumentedClient) resolve(path string) string {
	if c.options.baseURL == "" || strings.HasPrefix(path, "http") {
		return path
	}
	target := strings.TrimSuffix(c.options.baseURL, "/")
	if path != "" {
		target += "/" + strings.TrimPrefix(path, "/")
	}
	return target
}

func (c *InstrumentedClient) record(ctx context.Context, operation string, success bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", c.options.providerName),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// annotate flags cancellations and timeouts on the span.
func (c *InstrumentedClient) annotate(span trace.Span, err error) {
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
}

func defaultStatusCheck(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if len(body) > maxStatusBody {
		body = body[:maxStatusBody]
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrStatus, statusCode, string(body))
}
