package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/poller"
)

const tracerName = "onchain"

// Stream names, also used as poller metric labels.
const (
	LiveAuctionStream    = "live-auction"
	SettledAuctionStream = "settled-auction"
)

// ServiceConfig configures the on-chain data service.
type ServiceConfig struct {
	// Policy is used by every paginated fetch.
	Policy                 domain.CachePolicy
	LiveAuctionInterval    time.Duration
	SettledAuctionInterval time.Duration
}

// DefaultServiceConfig returns the intervals used by nouns.wtf clients.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Policy:                 domain.ReturnCacheDataAndFetch,
		LiveAuctionInterval:    5 * time.Second,
		SettledAuctionInterval: 30 * time.Second,
	}
}

// Service is the on-chain data facade. Fetches are stateless pass-throughs;
// each live stream is backed by one poller shared by all its subscribers.
type Service struct {
	config   ServiceConfig
	balances BalanceReader
	subgraph Subgraph
	logger   logger.LoggerInterface
	tracer   trace.Tracer

	live    *poller.Poller[domain.Auction]
	settled *poller.Poller[domain.Auction]
}

// NewService creates the service and its two idle stream pollers.
func NewService(balances BalanceReader, subgraph Subgraph, cfg ServiceConfig, log logger.LoggerInterface) (*Service, error) {
	s := &Service{
		config:   cfg,
		balances: balances,
		subgraph: subgraph,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	var err error
	s.live, err = poller.New(LiveAuctionStream, cfg.LiveAuctionInterval, s.pollLiveAuction,
		poller.WithEqual(domain.Auction.Equal),
		poller.WithLogger[domain.Auction](log))
	if err != nil {
		return nil, fmt.Errorf("live auction poller: %w", err)
	}

	s.settled, err = poller.New(SettledAuctionStream, cfg.SettledAuctionInterval, s.pollLatestSettled,
		poller.WithEqual(domain.Auction.Equal),
		poller.WithLogger[domain.Auction](log))
	if err != nil {
		return nil, fmt.Errorf("settled auction poller: %w", err)
	}

	return s, nil
}

// FetchTreasury returns the treasury total in wei as a base-10 string.
func (s *Service) FetchTreasury(ctx context.Context) (string, error) {
	t, err := s.FetchTreasuryBreakdown(ctx)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// FetchTreasuryBreakdown returns both treasury balances and their sum.
func (s *Service) FetchTreasuryBreakdown(ctx context.Context) (domain.Treasury, error) {
	ctx, span := s.tracer.Start(ctx, "onchain.fetch_treasury")
	defer span.End()

	t, err := s.balances.ReadTreasury(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "treasury read failed")
		s.logger.Error(ctx, "treasury read failed", "error", err)
		return domain.Treasury{}, err
	}
	return t, nil
}

// FetchSettledNouns lists Nouns.
func (s *Service) FetchSettledNouns(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Noun], error) {
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Noun]{}, err
	}
	ctx, span := s.startFetch(ctx, "onchain.fetch_nouns", page)
	defer span.End()

	return traced[domain.Noun](span)(s.subgraph.Nouns(ctx, page, s.config.Policy))
}

// FetchAuctions lists auctions matching filter.
func (s *Service) FetchAuctions(ctx context.Context, filter domain.AuctionFilter, page domain.PageRequest) (domain.Page[domain.Auction], error) {
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Auction]{}, err
	}
	ctx, span := s.startFetch(ctx, "onchain.fetch_auctions", page,
		attribute.Bool("settled", filter.Settled),
		attribute.Bool("nounder_owned", filter.IncludeNounderOwned))
	defer span.End()

	return traced[domain.Auction](span)(s.subgraph.Auctions(ctx, filter, page, s.config.Policy))
}

// FetchActivity lists the votes cast with a Noun.
func (s *Service) FetchActivity(ctx context.Context, nounID string, page domain.PageRequest) (domain.Page[domain.Vote], error) {
	if err := validateNounID(nounID); err != nil {
		return domain.Page[domain.Vote]{}, err
	}
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Vote]{}, err
	}
	ctx, span := s.startFetch(ctx, "onchain.fetch_activity", page, attribute.String("noun", nounID))
	defer span.End()

	return traced[domain.Vote](span)(s.subgraph.Votes(ctx, nounID, page, s.config.Policy))
}

// FetchBids lists the bids placed on a Noun.
func (s *Service) FetchBids(ctx context.Context, nounID string, page domain.PageRequest) (domain.Page[domain.Bid], error) {
	if err := validateNounID(nounID); err != nil {
		return domain.Page[domain.Bid]{}, err
	}
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Bid]{}, err
	}
	ctx, span := s.startFetch(ctx, "onchain.fetch_bids", page, attribute.String("noun", nounID))
	defer span.End()

	return traced[domain.Bid](span)(s.subgraph.Bids(ctx, nounID, page, s.config.Policy))
}

// FetchProposals lists governance proposals.
func (s *Service) FetchProposals(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Proposal], error) {
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Proposal]{}, err
	}
	ctx, span := s.startFetch(ctx, "onchain.fetch_proposals", page)
	defer span.End()

	return traced[domain.Proposal](span)(s.subgraph.Proposals(ctx, page, s.config.Policy))
}

// FetchLiveAuction returns the current auction. It fails with
// NoDataAvailable when the subgraph has none.
func (s *Service) FetchLiveAuction(ctx context.Context) (domain.Auction, error) {
	return s.fetchLiveAuction(ctx, s.config.Policy)
}

// FetchLatestSettledAuction returns the most recently settled auction. It
// fails with NoDataAvailable when none has settled yet.
func (s *Service) FetchLatestSettledAuction(ctx context.Context) (domain.Auction, error) {
	return s.fetchLatestSettled(ctx, s.config.Policy)
}

// LiveAuctionChanges subscribes to the current auction. The subscription
// closes when ctx is done or when the caller closes it.
func (s *Service) LiveAuctionChanges(ctx context.Context) *poller.Subscription[domain.Auction] {
	return s.live.SubscribeContext(ctx)
}

// SettledAuctionChanges subscribes to the most recently settled auction.
func (s *Service) SettledAuctionChanges(ctx context.Context) *poller.Subscription[domain.Auction] {
	return s.settled.SubscribeContext(ctx)
}

// StreamStates reports the state of each stream poller.
func (s *Service) StreamStates() map[string]poller.State {
	return map[string]poller.State{
		LiveAuctionStream:    s.live.State(),
		SettledAuctionStream: s.settled.State(),
	}
}

// Ping checks both upstreams.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.balances.Ping(ctx); err != nil {
		return err
	}
	return s.subgraph.Ping(ctx)
}

// Close stops both stream pollers.
func (s *Service) Close() {
	s.live.Stop()
	s.settled.Stop()
}

// Polls always go to the network; a cached page would hide changes.
func (s *Service) pollLiveAuction(ctx context.Context) (domain.Auction, error) {
	return s.fetchLiveAuction(ctx, domain.NetworkOnly)
}

func (s *Service) pollLatestSettled(ctx context.Context) (domain.Auction, error) {
	return s.fetchLatestSettled(ctx, domain.NetworkOnly)
}

func (s *Service) fetchLiveAuction(ctx context.Context, policy domain.CachePolicy) (domain.Auction, error) {
	ctx, span := s.tracer.Start(ctx, "onchain.fetch_live_auction")
	defer span.End()

	page, err := s.subgraph.LiveAuction(ctx, policy)
	if err != nil {
		span.RecordError(err)
		return domain.Auction{}, err
	}
	return single(page, "live auction")
}

func (s *Service) fetchLatestSettled(ctx context.Context, policy domain.CachePolicy) (domain.Auction, error) {
	ctx, span := s.tracer.Start(ctx, "onchain.fetch_latest_settled_auction")
	defer span.End()

	page, err := s.subgraph.Auctions(ctx,
		domain.AuctionFilter{Settled: true, IncludeNounderOwned: true},
		domain.FirstPage(1),
		policy)
	if err != nil {
		span.RecordError(err)
		return domain.Auction{}, err
	}
	return single(page, "settled auction")
}

func (s *Service) startFetch(ctx context.Context, name string, page domain.PageRequest, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.Int("limit", page.Limit),
		attribute.Int("cursor", page.Cursor),
		attribute.String("policy", s.config.Policy.String()),
	)
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// traced records a failed fetch on span and passes the result through.
func traced[T any](span trace.Span) func(domain.Page[T], error) (domain.Page[T], error) {
	return func(p domain.Page[T], err error) (domain.Page[T], error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return domain.Page[T]{}, err
		}
		span.SetAttributes(attribute.Int("items", len(p.Items)))
		return p, nil
	}
}

func single(page domain.Page[domain.Auction], what string) (domain.Auction, error) {
	a, ok := page.First()
	if !ok {
		return domain.Auction{}, apperror.New(apperror.CodeNoDataAvailable,
			apperror.WithContext("no "+what))
	}
	return a, nil
}

func validateNounID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.Validation(apperror.CodeRequiredField, "noun id")
	}
	return nil
}
