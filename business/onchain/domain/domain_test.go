package domain

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/asset"
)

func fixtureAuctions() []Auction {
	start := time.Unix(1636758555, 0).UTC()
	end := time.Unix(1636844955, 0).UTC()
	owner := Account{ID: "0x2573c60a6d127755aa2dc85e342f7da2378a0cc5"}

	return []Auction{
		{
			ID:        "106",
			Noun:      Noun{ID: "106", Owner: owner, Seed: Seed{Background: 0, Body: 14, Accessory: 132, Head: 94, Glasses: 18}},
			Amount:    decimal.RequireFromString("2000000000000000000"),
			StartTime: start,
			EndTime:   end,
			Settled:   false,
		},
		{
			ID:        "105",
			Noun:      Noun{ID: "105", Owner: owner},
			Amount:    decimal.RequireFromString("73500000000000000000"),
			StartTime: start.Add(-24 * time.Hour),
			EndTime:   end.Add(-24 * time.Hour),
			Settled:   true,
		},
		{
			ID:        "104",
			Noun:      Noun{ID: "104", Owner: owner},
			Amount:    decimal.RequireFromString("100000000000000000"),
			StartTime: start.Add(-48 * time.Hour),
			EndTime:   end.Add(-48 * time.Hour),
			Settled:   true,
			Bids: []Bid{{
				ID:             "0xaf1efeeaedf13ad7cbaa66661d9411f6118ac4e4884daae6a3b81ab12d15f082",
				Amount:         decimal.RequireFromString("100000000000000000"),
				Bidder:         owner,
				BlockTimestamp: start.Add(-47 * time.Hour),
			}},
		},
	}
}

func TestPage_JSONPreservesOrderAndFields(t *testing.T) {
	want := NewPage(fixtureAuctions(), PageRequest{Limit: 3})

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Page[Auction]
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(got.Items) != len(want.Items) {
		t.Fatalf("expected %d items, got %d", len(want.Items), len(got.Items))
	}
	for i := range want.Items {
		w, g := want.Items[i], got.Items[i]
		if g.ID != w.ID {
			t.Errorf("item %d: expected id %s, got %s", i, w.ID, g.ID)
		}
		if !g.Amount.Equal(w.Amount) {
			t.Errorf("item %d: expected amount %s, got %s", i, w.Amount, g.Amount)
		}
		if g.Settled != w.Settled {
			t.Errorf("item %d: expected settled %v, got %v", i, w.Settled, g.Settled)
		}
		if !g.Equal(w) {
			t.Errorf("item %d: round trip changed the auction", i)
		}
	}
	if !got.HasNext {
		t.Error("expected HasNext for a full page")
	}
}

func TestNewPage_HasNext(t *testing.T) {
	tests := []struct {
		name  string
		items int
		limit int
		want  bool
	}{
		{"full page", 10, 10, true},
		{"short page", 9, 10, false},
		{"empty page", 0, 10, false},
		{"single", 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(make([]int, tt.items), PageRequest{Limit: tt.limit, Cursor: 20})
			if p.HasNext != tt.want {
				t.Errorf("expected HasNext %v, got %v", tt.want, p.HasNext)
			}
			if p.NextCursor() != 20+tt.items {
				t.Errorf("expected next cursor %d, got %d", 20+tt.items, p.NextCursor())
			}
		})
	}
}

func TestNewPage_NilItemsEncodeAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(NewPage[Noun](nil, FirstPage(5)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"items":[],"hasNext":false,"cursor":0,"limit":5}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestPageRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     PageRequest
		wantErr bool
	}{
		{"valid", PageRequest{Limit: 10, Cursor: 0}, false},
		{"valid offset", PageRequest{Limit: 1, Cursor: 99}, false},
		{"zero limit", PageRequest{Limit: 0}, true},
		{"negative limit", PageRequest{Limit: -1}, true},
		{"negative cursor", PageRequest{Limit: 10, Cursor: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if err != nil && apperror.GetCode(err) != apperror.CodeInvalidInput {
				t.Errorf("expected code %s, got %s", apperror.CodeInvalidInput, apperror.GetCode(err))
			}
		})
	}
}

func TestAuction_Validate(t *testing.T) {
	now := time.Unix(1636844955, 0)
	a := fixtureAuctions()[0]

	if err := a.Validate(now.Add(-time.Hour)); err != nil {
		t.Errorf("live auction should validate: %v", err)
	}

	a.Settled = true
	if err := a.Validate(now.Add(-time.Hour)); err == nil {
		t.Error("expected error for settled auction ending in the future")
	}
	if err := a.Validate(now.Add(time.Second)); err != nil {
		t.Errorf("settled auction after its end should validate: %v", err)
	}
}

func TestAuction_IsLive(t *testing.T) {
	a := fixtureAuctions()[0]

	if !a.IsLive(a.StartTime.Add(time.Minute)) {
		t.Error("expected auction to be live during its window")
	}
	if a.IsLive(a.EndTime) {
		t.Error("expected auction to be closed at its end time")
	}
	if a.Remaining(a.EndTime.Add(time.Hour)) != 0 {
		t.Error("expected zero remaining after end")
	}
}

func TestAuction_Equal(t *testing.T) {
	a := fixtureAuctions()[2]
	b := fixtureAuctions()[2]
	if !a.Equal(b) {
		t.Fatal("expected identical fixtures to be equal")
	}

	b.Bids[0].Amount = decimal.RequireFromString("200000000000000000")
	if a.Equal(b) {
		t.Error("expected a changed bid to break equality")
	}

	c := fixtureAuctions()[2]
	c.Noun.Owner = Account{ID: "0x2573C60A6D127755AA2DC85E342F7DA2378A0CC5"}
	if !a.Equal(c) {
		t.Error("expected owner comparison to ignore case")
	}
}

func TestNoun_Name(t *testing.T) {
	if got := (Noun{ID: "0"}).Name(); got != "Noun 0" {
		t.Errorf("expected Noun 0, got %s", got)
	}
}

func TestParseProposalStatus(t *testing.T) {
	st, err := ParseProposalStatus("queued")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != ProposalQueued {
		t.Errorf("expected %s, got %s", ProposalQueued, st)
	}
	if st.IsFinal() {
		t.Error("queued is not final")
	}

	if _, err := ParseProposalStatus("PASSED"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestVoteSupport_JSON(t *testing.T) {
	var v Vote
	if err := json.Unmarshal([]byte(`{"id":"1","support":1,"votes":3}`), &v); err != nil {
		t.Fatalf("unmarshal numeric: %v", err)
	}
	if v.Support != VoteFor {
		t.Errorf("expected for, got %s", v.Support)
	}

	data, err := json.Marshal(v.Support)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"for"` {
		t.Errorf("expected \"for\", got %s", data)
	}

	var s VoteSupport
	if err := json.Unmarshal([]byte(`"abstain"`), &s); err != nil || s != VoteAbstain {
		t.Errorf("expected abstain, got %v (err %v)", s, err)
	}
	if err := json.Unmarshal([]byte(`7`), &s); err == nil {
		t.Error("expected error for out-of-range support")
	}
}

func TestParseCachePolicy(t *testing.T) {
	for in, want := range map[string]CachePolicy{
		"":                            ReturnCacheDataAndFetch,
		"return_cache_data_and_fetch": ReturnCacheDataAndFetch,
		"NETWORK_ONLY":                NetworkOnly,
		"cache_first":                 CacheFirst,
	} {
		got, err := ParseCachePolicy(in)
		if err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := ParseCachePolicy("cache_only"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestTreasury_SumsAtParity(t *testing.T) {
	eth := asset.NewAmount(asset.ETH, mustBig("2000000000000000000"))
	steth := asset.NewAmount(asset.STETH, mustBig("1500000000000000000"))

	tr, err := NewTreasury(eth, steth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.String() != "3500000000000000000" {
		t.Errorf("expected 3500000000000000000, got %s", tr.String())
	}
	if !tr.TotalETH().Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("expected 3.5 ETH, got %s", tr.TotalETH())
	}

	// Total returns a copy.
	tr.Total().SetInt64(0)
	if tr.String() != "3500000000000000000" {
		t.Error("Total must not expose internal state")
	}
}

func TestTreasury_RejectsMismatchedDecimals(t *testing.T) {
	usdc := asset.NewNative(asset.ChainIDEthereum, "USDC", "USD Coin", 6)
	_, err := NewTreasury(asset.Zero(asset.ETH), asset.Zero(usdc))
	if !errors.Is(err, asset.ErrDecimalsDiffer) {
		t.Errorf("expected ErrDecimalsDiffer, got %v", err)
	}
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}
