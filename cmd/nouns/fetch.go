package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nouns-dao/nouns-onchain/business/onchain/app"
	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
)

type treasuryOutput struct {
	Total    string `json:"total"`
	TotalETH string `json:"totalEth"`
	ETH      string `json:"eth"`
	StETH    string `json:"steth"`
}

func newTreasuryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "treasury",
		Short: "Print the DAO treasury (ETH + stETH) in wei",
		Args:  cobra.NoArgs,
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			t, err := svc.FetchTreasuryBreakdown(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), treasuryOutput{
				Total:    t.String(),
				TotalETH: t.TotalETH().String(),
				ETH:      t.ETH.Raw().String(),
				StETH:    t.StETH.Raw().String(),
			})
		}),
	}
}

func newNounsCmd(flags *rootFlags) *cobra.Command {
	page := &domain.PageRequest{}
	cmd := &cobra.Command{
		Use:   "nouns",
		Short: "List Nouns",
		Args:  cobra.NoArgs,
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			v, err := svc.FetchSettledNouns(ctx, *page)
			return printResult(cmd, v, err)
		}),
	}
	pageFlags(cmd, page)
	return cmd
}

func newAuctionsCmd(flags *rootFlags) *cobra.Command {
	page := &domain.PageRequest{}
	filter := &domain.AuctionFilter{}
	cmd := &cobra.Command{
		Use:   "auctions",
		Short: "List auctions",
		Args:  cobra.NoArgs,
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			v, err := svc.FetchAuctions(ctx, *filter, *page)
			return printResult(cmd, v, err)
		}),
	}
	pageFlags(cmd, page)
	cmd.Flags().BoolVar(&filter.Settled, "settled", true, "list settled auctions")
	cmd.Flags().BoolVar(&filter.IncludeNounderOwned, "nounder-owned", true, "include Nouns minted to the founders")
	return cmd
}

func newVotesCmd(flags *rootFlags) *cobra.Command {
	page := &domain.PageRequest{}
	cmd := &cobra.Command{
		Use:   "votes <nounID>",
		Short: "List votes cast with a Noun",
		Args:  cobra.ExactArgs(1),
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			v, err := svc.FetchActivity(ctx, cmd.Flags().Arg(0), *page)
			return printResult(cmd, v, err)
		}),
	}
	pageFlags(cmd, page)
	return cmd
}

func newBidsCmd(flags *rootFlags) *cobra.Command {
	page := &domain.PageRequest{}
	cmd := &cobra.Command{
		Use:   "bids <nounID>",
		Short: "List bids placed on a Noun",
		Args:  cobra.ExactArgs(1),
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			v, err := svc.FetchBids(ctx, cmd.Flags().Arg(0), *page)
			return printResult(cmd, v, err)
		}),
	}
	pageFlags(cmd, page)
	return cmd
}

func newProposalsCmd(flags *rootFlags) *cobra.Command {
	page := &domain.PageRequest{}
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List governance proposals",
		Args:  cobra.NoArgs,
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			v, err := svc.FetchProposals(ctx, *page)
			return printResult(cmd, v, err)
		}),
	}
	pageFlags(cmd, page)
	return cmd
}

func pageFlags(cmd *cobra.Command, page *domain.PageRequest) {
	cmd.Flags().IntVar(&page.Limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&page.Cursor, "cursor", 0, "number of records to skip")
}

// withService bootstraps the application for a one-shot command.
func withService(flags *rootFlags, run func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		s, err := bootstrap(ctx, flags, stderr)
		if err != nil {
			return err
		}
		defer s.Close()

		return run(ctx, cmd, s.service())
	}
}

// printResult writes v as JSON unless err is set.
func printResult(cmd *cobra.Command, v any, err error) error {
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), v)
}
