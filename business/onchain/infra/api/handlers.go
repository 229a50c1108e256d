// Package api exposes the on-chain data service over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/poller"
)

const defaultLimit = 20

// Service is the subset of the on-chain data service served over HTTP.
type Service interface {
	FetchTreasuryBreakdown(ctx context.Context) (domain.Treasury, error)
	FetchSettledNouns(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Noun], error)
	FetchAuctions(ctx context.Context, filter domain.AuctionFilter, page domain.PageRequest) (domain.Page[domain.Auction], error)
	FetchActivity(ctx context.Context, nounID string, page domain.PageRequest) (domain.Page[domain.Vote], error)
	FetchBids(ctx context.Context, nounID string, page domain.PageRequest) (domain.Page[domain.Bid], error)
	FetchProposals(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Proposal], error)
	FetchLiveAuction(ctx context.Context) (domain.Auction, error)
	FetchLatestSettledAuction(ctx context.Context) (domain.Auction, error)
	LiveAuctionChanges(ctx context.Context) *poller.Subscription[domain.Auction]
	SettledAuctionChanges(ctx context.Context) *poller.Subscription[domain.Auction]
	StreamStates() map[string]poller.State
}

// Handlers serves the /v1 routes.
type Handlers struct {
	svc       Service
	logger    logger.LoggerInterface
	keepAlive time.Duration
}

// NewHandlers creates the route handlers. keepAlive is the interval of SSE
// comments on idle streams; zero disables them.
func NewHandlers(svc Service, keepAlive time.Duration, log logger.LoggerInterface) *Handlers {
	return &Handlers{svc: svc, logger: log, keepAlive: keepAlive}
}

type treasuryResponse struct {
	Total    string `json:"total"`
	TotalETH string `json:"totalEth"`
	ETH      string `json:"eth"`
	StETH    string `json:"steth"`
}

// Treasury handles GET /v1/treasury.
func (h *Handlers) Treasury(c *gin.Context) {
	t, err := h.svc.FetchTreasuryBreakdown(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, treasuryResponse{
		Total:    t.String(),
		TotalETH: t.TotalETH().String(),
		ETH:      t.ETH.Raw().String(),
		StETH:    t.StETH.Raw().String(),
	})
}

// Nouns handles GET /v1/nouns.
func (h *Handlers) Nouns(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	v, err := h.svc.FetchSettledNouns(c.Request.Context(), page)
	h.reply(c, v, err)
}

// Auctions handles GET /v1/auctions?settled=&nounderOwned=.
func (h *Handlers) Auctions(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	settled, err := boolQuery(c, "settled", true)
	if err != nil {
		h.fail(c, err)
		return
	}
	nounder, err := boolQuery(c, "nounderOwned", true)
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := domain.AuctionFilter{Settled: settled, IncludeNounderOwned: nounder}
	v, err := h.svc.FetchAuctions(c.Request.Context(), filter, page)
	h.reply(c, v, err)
}

// Votes handles GET /v1/nouns/:id/votes.
func (h *Handlers) Votes(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	v, err := h.svc.FetchActivity(c.Request.Context(), c.Param("id"), page)
	h.reply(c, v, err)
}

// Bids handles GET /v1/nouns/:id/bids.
func (h *Handlers) Bids(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	v, err := h.svc.FetchBids(c.Request.Context(), c.Param("id"), page)
	h.reply(c, v, err)
}

// Proposals handles GET /v1/proposals.
func (h *Handlers) Proposals(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}
	v, err := h.svc.FetchProposals(c.Request.Context(), page)
	h.reply(c, v, err)
}

// LiveAuction handles GET /v1/auctions/live.
func (h *Handlers) LiveAuction(c *gin.Context) {
	v, err := h.svc.FetchLiveAuction(c.Request.Context())
	h.reply(c, v, err)
}

// LatestSettled handles GET /v1/auctions/latest-settled.
func (h *Handlers) LatestSettled(c *gin.Context) {
	v, err := h.svc.FetchLatestSettledAuction(c.Request.Context())
	h.reply(c, v, err)
}

// LiveStream handles GET /v1/auctions/live/stream.
func (h *Handlers) LiveStream(c *gin.Context) {
	h.stream(c, h.svc.LiveAuctionChanges(c.Request.Context()))
}

// SettledStream handles GET /v1/auctions/settled/stream.
func (h *Handlers) SettledStream(c *gin.Context) {
	h.stream(c, h.svc.SettledAuctionChanges(c.Request.Context()))
}

// Streams handles GET /v1/streams.
func (h *Handlers) Streams(c *gin.Context) {
	out := make(gin.H)
	for name, state := range h.svc.StreamStates() {
		out[name] = state.String()
	}
	c.JSON(http.StatusOK, out)
}

// stream writes each update as an SSE event until the client leaves or the
// poller reports a failure. A failure is sent as an "error" event.
func (h *Handlers) stream(c *gin.Context, sub *poller.Subscription[domain.Auction]) {
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	var keepAlive <-chan time.Time
	if h.keepAlive > 0 {
		t := time.NewTicker(h.keepAlive)
		defer t.Stop()
		keepAlive = t.C
	}

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case <-keepAlive:
			_, _ = w.Write([]byte(":\n\n"))
			return true
		case u, ok := <-sub.C():
			if !ok {
				return false
			}
			if u.Err != nil {
				h.logger.Warn(ctx, "auction stream failed", "error", u.Err)
				c.SSEvent("error", errorBody(ctx, u.Err))
				return false
			}
			c.SSEvent("auction", u.Value)
			return true
		}
	})
}

func (h *Handlers) page(c *gin.Context) (domain.PageRequest, bool) {
	limit, err := intQuery(c, "limit", defaultLimit)
	if err != nil {
		h.fail(c, err)
		return domain.PageRequest{}, false
	}
	cursor, err := intQuery(c, "cursor", 0)
	if err != nil {
		h.fail(c, err)
		return domain.PageRequest{}, false
	}
	return domain.PageRequest{Limit: limit, Cursor: cursor}, true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed",
			"path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody(c.Request.Context(), err))
}

func (h *Handlers) reply(c *gin.Context, v any, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func statusOf(err error) int {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// errorBody tags the reply with the request's trace ID when one is recorded.
func errorBody(ctx context.Context, err error) any {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		var traceID string
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		return appErr.ToResponse(traceID)
	}
	return gin.H{"err": err.Error()}
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(apperror.CodeInvalidInput, key+" must be an integer")
	}
	return n, nil
}

func boolQuery(c *gin.Context, key string, def bool) (bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.Validation(apperror.CodeInvalidInput, key+" must be a boolean")
	}
	return b, nil
}
