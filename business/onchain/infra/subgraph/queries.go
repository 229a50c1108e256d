package subgraph

import (
	"encoding/json"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
)

// Query is a named GraphQL document plus its variables. Field is the
// top-level selection holding the result records.
type Query struct {
	Name      string
	Field     string
	Document  string
	Variables map[string]any
	Page      domain.PageRequest
}

// canonicalVariables returns the variables as JSON with sorted keys.
func (q Query) canonicalVariables() string {
	if len(q.Variables) == 0 {
		return "{}"
	}
	b, err := json.Marshal(q.Variables)
	if err != nil {
		return "{}"
	}
	return string(b)
}

const seedFields = `seed { background body accessory head glasses }`

const nounFields = `id
	owner { id }
	` + seedFields

const bidFields = `id
	amount
	blockTimestamp
	bidder { id }`

const auctionFields = `id
	amount
	startTime
	endTime
	settled
	noun { ` + nounFields + ` }
	bids(orderBy: blockTimestamp, orderDirection: desc) { ` + bidFields + ` }`

const proposalFields = `id
	title
	description
	status`

const nounsDocument = `query NounsQuery($first: Int!, $skip: Int!) {
  nouns(first: $first, skip: $skip, orderBy: createdAtTimestamp, orderDirection: desc) {
    ` + nounFields + `
  }
}`

const auctionsDocument = `query AuctionsQuery($first: Int!, $skip: Int!, $settled: Boolean!, $minAmount: BigInt!) {
  auctions(first: $first, skip: $skip, orderBy: startTime, orderDirection: desc, where: { settled: $settled, amount_gt: $minAmount }) {
    ` + auctionFields + `
  }
}`

const liveAuctionDocument = `query LiveAuctionQuery {
  auctions(first: 1, orderBy: startTime, orderDirection: desc, where: { settled: false }) {
    ` + auctionFields + `
  }
}`

const votesDocument = `query VotesQuery($noun: String!, $first: Int!, $skip: Int!) {
  votes(first: $first, skip: $skip, orderBy: blockNumber, orderDirection: desc, where: { nouns_contains: [$noun] }) {
    id
    supportDetailed
    votes
    reason
    voter { id }
    proposal { ` + proposalFields + ` }
  }
}`

const bidsDocument = `query BidsQuery($noun: String!, $first: Int!, $skip: Int!) {
  bids(first: $first, skip: $skip, orderBy: blockTimestamp, orderDirection: desc, where: { noun: $noun }) {
    ` + bidFields + `
  }
}`

const proposalsDocument = `query ProposalsQuery($first: Int!, $skip: Int!) {
  proposals(first: $first, skip: $skip, orderBy: createdTimestamp, orderDirection: desc) {
    ` + proposalFields + `
  }
}`

const metaDocument = `query MetaQuery {
  _meta { block { number } hasIndexingErrors }
}`

func pageVariables(page domain.PageRequest) map[string]any {
	return map[string]any{
		"first": page.Limit,
		"skip":  page.Cursor,
	}
}

// NounsQuery lists Nouns, newest first.
func NounsQuery(page domain.PageRequest) Query {
	return Query{
		Name:      "NounsQuery",
		Field:     "nouns",
		Document:  nounsDocument,
		Variables: pageVariables(page),
		Page:      page,
	}
}

// AuctionsQuery lists auctions by start time, newest first.
func AuctionsQuery(filter domain.AuctionFilter, page domain.PageRequest) Query {
	vars := pageVariables(page)
	vars["settled"] = filter.Settled
	// amount_gt: -1 matches every auction.
	vars["minAmount"] = "-1"
	if !filter.IncludeNounderOwned {
		vars["minAmount"] = "0"
	}

	return Query{
		Name:      "AuctionsQuery",
		Field:     "auctions",
		Document:  auctionsDocument,
		Variables: vars,
		Page:      page,
	}
}

// LiveAuctionQuery selects the current unsettled auction.
func LiveAuctionQuery() Query {
	return Query{
		Name:      "LiveAuctionQuery",
		Field:     "auctions",
		Document:  liveAuctionDocument,
		Variables: map[string]any{},
		Page:      domain.FirstPage(1),
	}
}

// VotesQuery lists votes cast with the given Noun.
func VotesQuery(nounID string, page domain.PageRequest) Query {
	vars := pageVariables(page)
	vars["noun"] = nounID

	return Query{
		Name:      "VotesQuery",
		Field:     "votes",
		Document:  votesDocument,
		Variables: vars,
		Page:      page,
	}
}

// BidsQuery lists bids placed on the given Noun's auction.
func BidsQuery(nounID string, page domain.PageRequest) Query {
	vars := pageVariables(page)
	vars["noun"] = nounID

	return Query{
		Name:      "BidsQuery",
		Field:     "bids",
		Document:  bidsDocument,
		Variables: vars,
		Page:      page,
	}
}

// ProposalsQuery lists governance proposals, newest first.
func ProposalsQuery(page domain.PageRequest) Query {
	return Query{
		Name:      "ProposalsQuery",
		Field:     "proposals",
		Document:  proposalsDocument,
		Variables: pageVariables(page),
		Page:      page,
	}
}

// MetaQuery reads the indexer's sync state.
func MetaQuery() Query {
	return Query{
		Name:      "MetaQuery",
		Field:     "_meta",
		Document:  metaDocument,
		Variables: map[string]any{},
	}
}
