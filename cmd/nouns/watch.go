package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nouns-dao/nouns-onchain/business/onchain/app"
	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/poller"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "watch live|settled",
		Short:     "Print auction changes until interrupted",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"live", "settled"},
		RunE: withService(flags, func(ctx context.Context, cmd *cobra.Command, svc *app.Service) error {
			var sub *poller.Subscription[domain.Auction]
			switch cmd.Flags().Arg(0) {
			case "live":
				sub = svc.LiveAuctionChanges(ctx)
			default:
				sub = svc.SettledAuctionChanges(ctx)
			}
			defer sub.Close()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sub.Done():
					return nil
				case u := <-sub.C():
					if u.Err != nil {
						return fmt.Errorf("watch %s: %w", cmd.Flags().Arg(0), u.Err)
					}
					if err := printJSON(out, u.Value); err != nil {
						return err
					}
				}
			}
		}),
	}
}
