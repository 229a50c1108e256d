package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bid is a single bid on an auction. Amount is in wei.
type Bid struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Bidder         Account         `json:"bidder"`
	BlockTimestamp time.Time       `json:"blockTimestamp"`
}

// Equal compares bids by value.
func (b Bid) Equal(o Bid) bool {
	return b.ID == o.ID &&
		b.Amount.Equal(o.Amount) &&
		b.Bidder.Equal(o.Bidder) &&
		b.BlockTimestamp.Equal(o.BlockTimestamp)
}

// Auction is a daily Noun auction. Amount is the highest bid in wei.
// Bids are ordered most recent first.
type Auction struct {
	ID        string          `json:"id"`
	Noun      Noun            `json:"noun"`
	Amount    decimal.Decimal `json:"amount"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Settled   bool            `json:"settled"`
	Bids      []Bid           `json:"bids"`
}

// Validate checks that a settled auction has already ended.
func (a Auction) Validate(now time.Time) error {
	if a.Settled && a.EndTime.After(now) {
		return fmt.Errorf("auction %s is settled but ends at %s", a.ID, a.EndTime.UTC().Format(time.RFC3339))
	}
	if a.EndTime.Before(a.StartTime) {
		return fmt.Errorf("auction %s ends before it starts", a.ID)
	}
	return nil
}

// IsLive reports whether bidding is open at now.
func (a Auction) IsLive(now time.Time) bool {
	return !a.Settled && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// Remaining returns the time left in the auction, never negative.
func (a Auction) Remaining(now time.Time) time.Duration {
	if d := a.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Equal is the change detector used by the live streams.
func (a Auction) Equal(o Auction) bool {
	if a.ID != o.ID ||
		!a.Amount.Equal(o.Amount) ||
		!a.StartTime.Equal(o.StartTime) ||
		!a.EndTime.Equal(o.EndTime) ||
		a.Settled != o.Settled ||
		!a.Noun.Equal(o.Noun) ||
		len(a.Bids) != len(o.Bids) {
		return false
	}
	for i := range a.Bids {
		if !a.Bids[i].Equal(o.Bids[i]) {
			return false
		}
	}
	return true
}

// AuctionFilter narrows an auction listing.
type AuctionFilter struct {
	Settled bool
	// IncludeNounderOwned keeps zero-amount auctions, which is how the
	// subgraph records Nouns sent to the founders' wallet.
	IncludeNounderOwned bool
}
