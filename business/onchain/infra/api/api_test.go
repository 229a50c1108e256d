package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/asset"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/poller"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

type fakeService struct {
	mu      sync.Mutex
	err     error
	page    domain.PageRequest
	filter  domain.AuctionFilter
	nounID  string
	live    *poller.Poller[domain.Auction]
	settled *poller.Poller[domain.Auction]
}

var _ Service = (*fakeService)(nil)

func (f *fakeService) record(page domain.PageRequest, nounID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
	f.nounID = nounID
}

func (f *fakeService) FetchTreasuryBreakdown(ctx context.Context) (domain.Treasury, error) {
	if f.err != nil {
		return domain.Treasury{}, f.err
	}
	eth := asset.NewAmount(asset.ETH, big.NewInt(1_000_000_000_000_000_000))
	steth := asset.NewAmount(asset.STETH, new(big.Int).Mul(big.NewInt(2_500_000_000), big.NewInt(1_000_000_000)))
	return domain.NewTreasury(eth, steth)
}

func (f *fakeService) FetchSettledNouns(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Noun], error) {
	f.record(page, "")
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Noun]{}, err
	}
	if f.err != nil {
		return domain.Page[domain.Noun]{}, f.err
	}
	return domain.NewPage([]domain.Noun{{ID: "1"}, {ID: "2"}}, page), nil
}

func (f *fakeService) FetchAuctions(ctx context.Context, filter domain.AuctionFilter, page domain.PageRequest) (domain.Page[domain.Auction], error) {
	f.record(page, "")
	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return domain.NewPage([]domain.Auction{testAuction("7")}, page), f.err
}

func (f *fakeService) FetchActivity(ctx context.Context, nounID string, page domain.PageRequest) (domain.Page[domain.Vote], error) {
	f.record(page, nounID)
	return domain.NewPage([]domain.Vote{{ID: "v1", Support: domain.VoteFor, Votes: 1}}, page), f.err
}

func (f *fakeService) FetchBids(ctx context.Context, nounID string, page domain.PageRequest) (domain.Page[domain.Bid], error) {
	f.record(page, nounID)
	return domain.NewPage([]domain.Bid{}, page), f.err
}

func (f *fakeService) FetchProposals(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Proposal], error) {
	f.record(page, "")
	return domain.NewPage([]domain.Proposal{{ID: "1", Status: domain.ProposalExecuted}}, page), f.err
}

func (f *fakeService) FetchLiveAuction(ctx context.Context) (domain.Auction, error) {
	if f.err != nil {
		return domain.Auction{}, f.err
	}
	return testAuction("9"), nil
}

func (f *fakeService) FetchLatestSettledAuction(ctx context.Context) (domain.Auction, error) {
	return domain.Auction{}, apperror.New(apperror.CodeNoDataAvailable, apperror.WithContext("no settled auction"))
}

func (f *fakeService) LiveAuctionChanges(ctx context.Context) *poller.Subscription[domain.Auction] {
	return f.live.SubscribeContext(ctx)
}

func (f *fakeService) SettledAuctionChanges(ctx context.Context) *poller.Subscription[domain.Auction] {
	return f.settled.SubscribeContext(ctx)
}

func (f *fakeService) StreamStates() map[string]poller.State {
	return map[string]poller.State{"live-auction": f.live.State(), "settled-auction": f.settled.State()}
}

func testAuction(id string) domain.Auction {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.Auction{
		ID:        id,
		Noun:      domain.Noun{ID: id},
		Amount:    decimal.RequireFromString("1000000000000000000"),
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	}
}

func newFakeService(t *testing.T, live poller.Action[domain.Auction]) *fakeService {
	t.Helper()
	idle := func(ctx context.Context) (domain.Auction, error) { return testAuction("1"), nil }
	if live == nil {
		live = idle
	}
	lp, err := poller.New("live-auction", 10*time.Millisecond, live)
	if err != nil {
		t.Fatalf("failed to create poller: %v", err)
	}
	sp, err := poller.New("settled-auction", time.Second, idle)
	if err != nil {
		t.Fatalf("failed to create poller: %v", err)
	}
	t.Cleanup(func() {
		lp.Stop()
		sp.Stop()
	})
	return &fakeService{live: lp, settled: sp}
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandlers(svc, 0, &mockLogger{}), []string{"https://nouns.wtf"})
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPI_Treasury(t *testing.T) {
	r := newTestRouter(newFakeService(t, nil))

	w := get(t, r, "/v1/treasury")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body treasuryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Total != "3500000000000000000" {
		t.Errorf("expected total 3500000000000000000, got %s", body.Total)
	}
	if body.TotalETH != "3.5" {
		t.Errorf("expected 3.5 ETH, got %s", body.TotalETH)
	}
}

func TestAPI_PaginationDefaultsAndParams(t *testing.T) {
	svc := newFakeService(t, nil)
	r := newTestRouter(svc)

	w := get(t, r, "/v1/nouns")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.page != (domain.PageRequest{Limit: defaultLimit}) {
		t.Errorf("expected default page, got %+v", svc.page)
	}

	w = get(t, r, "/v1/nouns?limit=2&cursor=4")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.page != (domain.PageRequest{Limit: 2, Cursor: 4}) {
		t.Errorf("expected limit 2 cursor 4, got %+v", svc.page)
	}

	var page domain.Page[domain.Noun]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if !page.HasNext || page.Cursor != 4 || len(page.Items) != 2 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestAPI_AuctionFilterAndNounRoutes(t *testing.T) {
	svc := newFakeService(t, nil)
	r := newTestRouter(svc)

	if w := get(t, r, "/v1/auctions?settled=false&nounderOwned=false"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.filter.Settled || svc.filter.IncludeNounderOwned {
		t.Errorf("expected both filters off, got %+v", svc.filter)
	}

	if w := get(t, r, "/v1/nouns/42/votes"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.nounID != "42" {
		t.Errorf("expected noun 42, got %q", svc.nounID)
	}

	w := get(t, r, "/v1/nouns/43/bids")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"items":[]`) {
		t.Errorf("expected empty items array, got %s", w.Body.String())
	}
}

func TestAPI_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
	}{
		{"bad limit", "/v1/nouns?limit=abc", nil, http.StatusBadRequest},
		{"non-positive limit", "/v1/nouns?limit=0", nil, http.StatusBadRequest},
		{"bad filter", "/v1/auctions?settled=maybe", nil, http.StatusBadRequest},
		{"no data", "/v1/auctions/latest-settled", nil, http.StatusNotFound},
		{"transport", "/v1/proposals", apperror.New(apperror.CodeTransportFailure), http.StatusBadGateway},
		{"decode", "/v1/auctions/live", apperror.New(apperror.CodeDecodeFailure), http.StatusBadGateway},
		{"chain read", "/v1/treasury", apperror.New(apperror.CodeChainReadFailure), http.StatusBadGateway},
		{"plain error", "/v1/nouns", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService(t, nil)
			svc.err = tt.err
			w := get(t, newTestRouter(svc), tt.path)
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_CORS(t *testing.T) {
	r := newTestRouter(newFakeService(t, nil))

	req := httptest.NewRequest(http.MethodGet, "/v1/proposals", nil)
	req.Header.Set("Origin", "https://nouns.wtf")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://nouns.wtf" {
		t.Errorf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/proposals", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unknown origin, got %d", w.Code)
	}
}

func TestAPI_LiveStream(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	svc := newFakeService(t, func(ctx context.Context) (domain.Auction, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return testAuction("9"), nil
		}
		return domain.Auction{}, apperror.New(apperror.CodeNoDataAvailable)
	})

	srv := httptest.NewServer(newTestRouter(svc))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/auctions/live/stream", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}
	out := string(body)

	if !strings.Contains(out, "event:auction") || !strings.Contains(out, `"id":"9"`) {
		t.Errorf("expected auction event, got %q", out)
	}
	if !strings.Contains(out, "event:error") || !strings.Contains(out, string(apperror.CodeStreamPollFailure)) {
		t.Errorf("expected terminal error event, got %q", out)
	}
	if strings.Index(out, "event:auction") > strings.Index(out, "event:error") {
		t.Errorf("expected auction before error, got %q", out)
	}
}

func TestAPI_Streams(t *testing.T) {
	w := get(t, newTestRouter(newFakeService(t, nil)), "/v1/streams")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var states map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &states); err != nil {
		t.Fatalf("failed to decode states: %v", err)
	}
	if states["live-auction"] != "idle" || states["settled-auction"] != "idle" {
		t.Errorf("expected idle streams, got %v", states)
	}
}
