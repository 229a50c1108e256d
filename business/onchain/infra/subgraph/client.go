// Package subgraph queries the Nouns subgraph over GraphQL.
package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/cache"
	"github.com/nouns-dao/nouns-onchain/internal/circuitbreaker"
	"github.com/nouns-dao/nouns-onchain/internal/httpclient"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/ratelimit"
)

const (
	tracerName = "subgraph"
	meterName  = "subgraph"

	defaultTimeout        = 15 * time.Second
	defaultRefreshTimeout = 20 * time.Second
	defaultCacheTTL       = 10 * time.Minute
	defaultCachePrefix    = "nouns"
)

// Config holds configuration for the subgraph client.
type Config struct {
	URL               string
	Timeout           time.Duration
	RequestsPerMinute int           // 0 disables rate limiting
	RefreshTimeout    time.Duration // budget for background cache refreshes
	CacheTTL          time.Duration
	CachePrefix       string
	// RoundTripper overrides the HTTP transport (tests).
	RoundTripper http.RoundTripper
}

type clientMetrics struct {
	queries     metric.Int64Counter
	failures    metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	refreshes   metric.Int64Counter
	latency     metric.Float64Histogram
}

// Client fetches pages of subgraph entities. Safe for concurrent use.
type Client struct {
	config  Config
	logger  logger.LoggerInterface
	http    httpclient.Client
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[json.RawMessage]
	store   cache.Store

	refreshes singleflight.Group
	inflight  sync.WaitGroup
	now       func() time.Time

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a client. store may be nil, which disables caching.
func NewClient(cfg Config, store cache.Store, log logger.LoggerInterface) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("subgraph url is required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = defaultCachePrefix
	}

	tracer := otel.Tracer(tracerName)

	opts := []httpclient.ClientOption{
		httpclient.WithProviderName("subgraph"),
		httpclient.WithBaseURL(cfg.URL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTracer(tracer, httpclient.TraceRequest),
	}
	if cfg.RoundTripper != nil {
		opts = append(opts, httpclient.WithRoundTripper(cfg.RoundTripper))
	}

	hc, err := httpclient.NewInstrumentedClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	c := &Client{
		config:  cfg,
		logger:  log,
		http:    hc,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		store:   store,
		now:     time.Now,
		tracer:  tracer,
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	c.initCircuitBreaker()

	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.queries, err = meter.Int64Counter(
		"subgraph_queries_total",
		metric.WithDescription("Total subgraph network queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	c.metrics.failures, err = meter.Int64Counter(
		"subgraph_query_errors_total",
		metric.WithDescription("Failed subgraph network queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.cacheHits, err = meter.Int64Counter(
		"subgraph_cache_hits_total",
		metric.WithDescription("Subgraph cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	c.metrics.cacheMisses, err = meter.Int64Counter(
		"subgraph_cache_misses_total",
		metric.WithDescription("Subgraph cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	c.metrics.refreshes, err = meter.Int64Counter(
		"subgraph_cache_refreshes_total",
		metric.WithDescription("Background cache refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"subgraph_query_latency_ms",
		metric.WithDescription("Subgraph network query latency"),
		metric.WithUnit("ms"),
	)
	return err
}

func (c *Client) initCircuitBreaker() {
	cfg := circuitbreaker.DefaultConfig("subgraph")
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String())
	}
	c.cb = circuitbreaker.New[json.RawMessage](cfg)
}

// Close waits for background cache refreshes to finish.
func (c *Client) Close() {
	c.inflight.Wait()
}

// Fetch runs q under policy and converts each record of q.Field with convert.
func Fetch[W, T any](ctx context.Context, c *Client, q Query, policy domain.CachePolicy, convert func(W) (T, error)) (domain.Page[T], error) {
	ctx, span := c.tracer.Start(ctx, "subgraph.fetch",
		trace.WithAttributes(
			attribute.String("query", q.Name),
			attribute.String("policy", policy.String()),
			attribute.Int("first", q.Page.Limit),
			attribute.Int("skip", q.Page.Cursor),
		),
	)
	defer span.End()

	decode := func(raw json.RawMessage) ([]T, error) {
		return decodeRecords(raw, q, convert)
	}
	validate := func(raw json.RawMessage) error {
		_, err := decode(raw)
		return err
	}

	key := c.cacheKey(q)

	if policy != domain.NetworkOnly {
		if raw, ok := c.cached(ctx, q, key); ok {
			items, err := decode(raw)
			if err == nil {
				span.SetAttributes(attribute.Bool("cache_hit", true))
				if policy == domain.ReturnCacheDataAndFetch {
					c.refresh(ctx, q, key, validate)
				}
				return domain.NewPage(items, q.Page), nil
			}
			c.logger.Warn(ctx, "discarding undecodable cache entry", "query", q.Name, "error", err)
			c.evict(ctx, key)
		}
	}

	raw, err := c.network(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "network query failed")
		return domain.Page[T]{}, err
	}

	items, err := decode(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return domain.Page[T]{}, err
	}

	c.put(ctx, key, raw)

	span.SetAttributes(attribute.Int("records", len(items)))
	return domain.NewPage(items, q.Page), nil
}

func decodeRecords[W, T any](raw json.RawMessage, q Query, convert func(W) (T, error)) ([]T, error) {
	var wire []W
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apperror.New(apperror.CodeDecodeFailure,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s: field %q is not a record list", q.Name, q.Field)))
	}
	if wire == nil {
		return nil, apperror.New(apperror.CodeDecodeFailure,
			apperror.WithContext(fmt.Sprintf("%s: field %q is null", q.Name, q.Field)))
	}

	items := make([]T, 0, len(wire))
	for i, w := range wire {
		item, err := convert(w)
		if err != nil {
			return nil, apperror.New(apperror.CodeDecodeFailure,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("%s: record %d", q.Name, i)))
		}
		items = append(items, item)
	}
	return items, nil
}

// network performs one rate-limited, breaker-guarded POST and returns the raw
// value of q.Field.
func (c *Client) network(ctx context.Context, q Query) (json.RawMessage, error) {
	attrs := metric.WithAttributes(attribute.String("query", q.Name))

	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.failures.Add(ctx, 1, attrs)
		return nil, apperror.New(apperror.CodeTransportFailure,
			apperror.WithCause(err),
			apperror.WithContext(q.Name+": rate limit wait"))
	}

	start := time.Now()
	c.metrics.queries.Add(ctx, 1, attrs)

	raw, err := c.cb.Execute(func() (json.RawMessage, error) {
		return c.post(ctx, q)
	})

	c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		c.metrics.failures.Add(ctx, 1, attrs)
		if circuitbreaker.IsOpen(err) {
			return nil, apperror.New(apperror.CodeTransportFailure,
				apperror.WithCause(err),
				apperror.WithContext("subgraph circuit breaker is open"))
		}
		return nil, err
	}
	return raw, nil
}

func (c *Client) post(ctx context.Context, q Query) (json.RawMessage, error) {
	vars := q.Variables
	if vars == nil {
		vars = map[string]any{}
	}

	var env envelope
	_, err := c.http.PostJSON(ctx, "",
		graphQLRequest{Query: q.Document, OperationName: q.Name, Variables: vars},
		&env,
		httpclient.WithOperation(q.Name))

	if err != nil {
		if errors.Is(err, httpclient.ErrUnmarshal) {
			return nil, apperror.New(apperror.CodeDecodeFailure,
				apperror.WithCause(err),
				apperror.WithContext(q.Name+": malformed response body"))
		}
		return nil, apperror.New(apperror.CodeTransportFailure,
			apperror.WithCause(err),
			apperror.WithContext(q.Name))
	}

	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, apperror.New(apperror.CodeTransportFailure,
			apperror.WithContext(fmt.Sprintf("%s: graphql errors: %s", q.Name, strings.Join(msgs, "; "))))
	}

	raw, ok := env.Data[q.Field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, apperror.New(apperror.CodeDecodeFailure,
			apperror.WithContext(fmt.Sprintf("%s: response has no %q field", q.Name, q.Field)))
	}
	return raw, nil
}

func (c *Client) cacheKey(q Query) string {
	return cache.Key(c.config.CachePrefix, "subgraph", q.Name, q.canonicalVariables())
}

// cached reads key. Store errors count as a miss.
func (c *Client) cached(ctx context.Context, q Query, key string) (json.RawMessage, bool) {
	if c.store == nil {
		return nil, false
	}
	attrs := metric.WithAttributes(attribute.String("query", q.Name))

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "cache read failed", "query", q.Name, "error", err)
		ok = false
	}
	if !ok {
		c.metrics.cacheMisses.Add(ctx, 1, attrs)
		return nil, false
	}
	c.metrics.cacheHits.Add(ctx, 1, attrs)
	return raw, true
}

func (c *Client) put(ctx context.Context, key string, raw json.RawMessage) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, c.config.CacheTTL); err != nil {
		c.logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}

func (c *Client) evict(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn(ctx, "cache delete failed", "key", key, "error", err)
	}
}

// refresh re-runs q in the background and overwrites the cache entry when
// the response decodes. At most one refresh per key runs at a time.
func (c *Client) refresh(ctx context.Context, q Query, key string, validate func(json.RawMessage) error) {
	// Keep trace context but not the caller's deadline.
	bg := context.WithoutCancel(ctx)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		_, _, _ = c.refreshes.Do(key, func() (any, error) {
			rctx, cancel := context.WithTimeout(bg, c.config.RefreshTimeout)
			defer cancel()

			c.metrics.refreshes.Add(rctx, 1, metric.WithAttributes(attribute.String("query", q.Name)))

			raw, err := c.network(rctx, q)
			if err != nil {
				c.logger.Debug(rctx, "background refresh failed", "query", q.Name, "error", err)
				return nil, err
			}
			if err := validate(raw); err != nil {
				c.logger.Warn(rctx, "background refresh returned undecodable data", "query", q.Name, "error", err)
				return nil, err
			}
			c.put(rctx, key, raw)
			return nil, nil
		})
	}()
}

// Nouns lists Nouns.
func (c *Client) Nouns(ctx context.Context, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Noun], error) {
	return Fetch(ctx, c, NounsQuery(page), policy, toNoun)
}

// Auctions lists auctions matching filter.
func (c *Client) Auctions(ctx context.Context, filter domain.AuctionFilter, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Auction], error) {
	return Fetch(ctx, c, AuctionsQuery(filter, page), policy, auctionConverter(c.now))
}

// LiveAuction returns the current unsettled auction as a page of at most one.
func (c *Client) LiveAuction(ctx context.Context, policy domain.CachePolicy) (domain.Page[domain.Auction], error) {
	return Fetch(ctx, c, LiveAuctionQuery(), policy, auctionConverter(c.now))
}

// Votes lists votes cast with a Noun.
func (c *Client) Votes(ctx context.Context, nounID string, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Vote], error) {
	return Fetch(ctx, c, VotesQuery(nounID, page), policy, toVote)
}

// Bids lists bids on a Noun.
func (c *Client) Bids(ctx context.Context, nounID string, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Bid], error) {
	return Fetch(ctx, c, BidsQuery(nounID, page), policy, toBid)
}

// Proposals lists governance proposals.
func (c *Client) Proposals(ctx context.Context, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Proposal], error) {
	return Fetch(ctx, c, ProposalsQuery(page), policy, toProposal)
}

// Ping checks that the subgraph answers and is indexing cleanly. It never uses the cache.
func (c *Client) Ping(ctx context.Context) error {
	q := MetaQuery()
	raw, err := c.network(ctx, q)
	if err != nil {
		return err
	}

	var meta metaWire
	if err := json.Unmarshal(raw, &meta); err != nil {
		return apperror.New(apperror.CodeDecodeFailure,
			apperror.WithCause(err),
			apperror.WithContext(q.Name))
	}
	if meta.HasIndexingErrors {
		return apperror.New(apperror.CodeTransportFailure,
			apperror.WithContext(fmt.Sprintf("subgraph has indexing errors at block %d", meta.Block.Number)))
	}
	return nil
}
