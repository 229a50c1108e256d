package subgraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
)

// graphQLRequest is the POST body.
type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables"`
}

// envelope is the GraphQL response body.
type envelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// number decodes a subgraph Int or BigInt, which arrive as JSON numbers or strings.
type number string

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return errors.New("unexpected null number")
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = number(s)
		return nil
	}
	*n = number(b)
	return nil
}

func (n number) int() (int, error) {
	return strconv.Atoi(string(n))
}

func (n number) int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

func (n number) decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(n))
}

func (n number) unix() (time.Time, error) {
	sec, err := n.int64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

type accountWire struct {
	ID string `json:"id"`
}

type seedWire struct {
	Background number `json:"background"`
	Body       number `json:"body"`
	Accessory  number `json:"accessory"`
	Head       number `json:"head"`
	Glasses    number `json:"glasses"`
}

type nounWire struct {
	ID    string       `json:"id"`
	Owner *accountWire `json:"owner"`
	Seed  *seedWire    `json:"seed"`
}

type bidWire struct {
	ID             string       `json:"id"`
	Amount         number       `json:"amount"`
	BlockTimestamp number       `json:"blockTimestamp"`
	Bidder         *accountWire `json:"bidder"`
}

type auctionWire struct {
	ID        string    `json:"id"`
	Amount    number    `json:"amount"`
	StartTime number    `json:"startTime"`
	EndTime   number    `json:"endTime"`
	Settled   bool      `json:"settled"`
	Noun      *nounWire `json:"noun"`
	Bids      []bidWire `json:"bids"`
}

type proposalWire struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
}

type voteWire struct {
	ID              string        `json:"id"`
	SupportDetailed int           `json:"supportDetailed"`
	Votes           number        `json:"votes"`
	Reason          *string       `json:"reason"`
	Voter           *accountWire  `json:"voter"`
	Proposal        *proposalWire `json:"proposal"`
}

type metaWire struct {
	Block struct {
		Number int64 `json:"number"`
	} `json:"block"`
	HasIndexingErrors bool `json:"hasIndexingErrors"`
}

func toAccount(w *accountWire, field string) (domain.Account, error) {
	if w == nil || w.ID == "" {
		return domain.Account{}, fmt.Errorf("missing %s", field)
	}
	return domain.Account{ID: w.ID}, nil
}

func toSeed(w *seedWire) (domain.Seed, error) {
	if w == nil {
		return domain.Seed{}, errors.New("missing seed")
	}

	var seed domain.Seed
	for _, f := range []struct {
		name string
		in   number
		out  *int
	}{
		{"background", w.Background, &seed.Background},
		{"body", w.Body, &seed.Body},
		{"accessory", w.Accessory, &seed.Accessory},
		{"head", w.Head, &seed.Head},
		{"glasses", w.Glasses, &seed.Glasses},
	} {
		v, err := f.in.int()
		if err != nil {
			return domain.Seed{}, fmt.Errorf("seed %s: %w", f.name, err)
		}
		if v < 0 {
			return domain.Seed{}, fmt.Errorf("seed %s: negative index %d", f.name, v)
		}
		*f.out = v
	}
	return seed, nil
}

func toNoun(w nounWire) (domain.Noun, error) {
	if w.ID == "" {
		return domain.Noun{}, errors.New("noun: missing id")
	}
	owner, err := toAccount(w.Owner, "owner")
	if err != nil {
		return domain.Noun{}, fmt.Errorf("noun %s: %w", w.ID, err)
	}
	seed, err := toSeed(w.Seed)
	if err != nil {
		return domain.Noun{}, fmt.Errorf("noun %s: %w", w.ID, err)
	}
	return domain.Noun{ID: w.ID, Owner: owner, Seed: seed}, nil
}

func toBid(w bidWire) (domain.Bid, error) {
	if w.ID == "" {
		return domain.Bid{}, errors.New("bid: missing id")
	}
	amount, err := w.Amount.decimal()
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid %s: amount: %w", w.ID, err)
	}
	ts, err := w.BlockTimestamp.unix()
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid %s: blockTimestamp: %w", w.ID, err)
	}
	bidder, err := toAccount(w.Bidder, "bidder")
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid %s: %w", w.ID, err)
	}
	return domain.Bid{ID: w.ID, Amount: amount, Bidder: bidder, BlockTimestamp: ts}, nil
}

// auctionConverter returns a converter that validates auctions against now().
func auctionConverter(now func() time.Time) func(auctionWire) (domain.Auction, error) {
	return func(w auctionWire) (domain.Auction, error) {
		if w.ID == "" {
			return domain.Auction{}, errors.New("auction: missing id")
		}
		amount, err := w.Amount.decimal()
		if err != nil {
			return domain.Auction{}, fmt.Errorf("auction %s: amount: %w", w.ID, err)
		}
		start, err := w.StartTime.unix()
		if err != nil {
			return domain.Auction{}, fmt.Errorf("auction %s: startTime: %w", w.ID, err)
		}
		end, err := w.EndTime.unix()
		if err != nil {
			return domain.Auction{}, fmt.Errorf("auction %s: endTime: %w", w.ID, err)
		}
		if w.Noun == nil {
			return domain.Auction{}, fmt.Errorf("auction %s: missing noun", w.ID)
		}
		noun, err := toNoun(*w.Noun)
		if err != nil {
			return domain.Auction{}, fmt.Errorf("auction %s: %w", w.ID, err)
		}

		bids := make([]domain.Bid, 0, len(w.Bids))
		for _, bw := range w.Bids {
			b, err := toBid(bw)
			if err != nil {
				return domain.Auction{}, fmt.Errorf("auction %s: %w", w.ID, err)
			}
			bids = append(bids, b)
		}

		a := domain.Auction{
			ID:        w.ID,
			Noun:      noun,
			Amount:    amount,
			StartTime: start,
			EndTime:   end,
			Settled:   w.Settled,
			Bids:      bids,
		}
		if err := a.Validate(now()); err != nil {
			return domain.Auction{}, err
		}
		return a, nil
	}
}

func toProposal(w proposalWire) (domain.Proposal, error) {
	if w.ID == "" {
		return domain.Proposal{}, errors.New("proposal: missing id")
	}
	status, err := domain.ParseProposalStatus(w.Status)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %s: %w", w.ID, err)
	}
	p := domain.Proposal{ID: w.ID, Description: w.Description, Status: status}
	if w.Title != nil {
		p.Title = *w.Title
	}
	return p, nil
}

func toVote(w voteWire) (domain.Vote, error) {
	if w.ID == "" {
		return domain.Vote{}, errors.New("vote: missing id")
	}
	support, err := domain.ParseVoteSupport(w.SupportDetailed)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("vote %s: %w", w.ID, err)
	}
	votes, err := w.Votes.int64()
	if err != nil {
		return domain.Vote{}, fmt.Errorf("vote %s: votes: %w", w.ID, err)
	}
	voter, err := toAccount(w.Voter, "voter")
	if err != nil {
		return domain.Vote{}, fmt.Errorf("vote %s: %w", w.ID, err)
	}
	if w.Proposal == nil {
		return domain.Vote{}, fmt.Errorf("vote %s: missing proposal", w.ID)
	}
	proposal, err := toProposal(*w.Proposal)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("vote %s: %w", w.ID, err)
	}

	v := domain.Vote{ID: w.ID, Voter: voter, Support: support, Votes: votes, Proposal: proposal}
	if w.Reason != nil {
		v.Reason = *w.Reason
	}
	return v, nil
}
