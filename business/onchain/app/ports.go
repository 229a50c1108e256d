// Package app contains the on-chain data service and its port definitions.
package app

import (
	"context"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
)

// BalanceReader reads the DAO treasury from the chain.
type BalanceReader interface {
	// ReadTreasury returns the executor's ETH and stETH balances.
	ReadTreasury(ctx context.Context) (domain.Treasury, error)

	// Ping checks connectivity to the node.
	Ping(ctx context.Context) error
}

// Subgraph queries indexed on-chain entities.
type Subgraph interface {
	Nouns(ctx context.Context, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Noun], error)
	Auctions(ctx context.Context, filter domain.AuctionFilter, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Auction], error)
	LiveAuction(ctx context.Context, policy domain.CachePolicy) (domain.Page[domain.Auction], error)
	Votes(ctx context.Context, nounID string, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Vote], error)
	Bids(ctx context.Context, nounID string, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Bid], error)
	Proposals(ctx context.Context, page domain.PageRequest, policy domain.CachePolicy) (domain.Page[domain.Proposal], error)

	// Ping checks that the indexer answers.
	Ping(ctx context.Context) error
}
