package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nouns-dao/nouns-onchain/business/onchain"
	"github.com/nouns-dao/nouns-onchain/business/onchain/app"
	onchainDI "github.com/nouns-dao/nouns-onchain/business/onchain/di"
	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/config"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/monolith"
)

type rootFlags struct {
	configPath string
	logLevel   string
	cacheFirst bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "nouns",
		Short: "Nouns DAO on-chain data service",
		Long: `Reads the Nouns DAO treasury from Ethereum and nouns, auctions, votes, bids
and proposals from the Nouns subgraph.

Example:
  nouns treasury
  nouns auctions --settled=false --limit 5
  nouns watch live
  nouns serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "", "override app.log_level (debug, info, warn, error)")
	pf.BoolVar(&flags.cacheFirst, "cache-first", false, "serve cached pages without refreshing them")

	cmd.AddCommand(
		newServeCmd(flags),
		newTreasuryCmd(flags),
		newNounsCmd(flags),
		newAuctionsCmd(flags),
		newVotesCmd(flags),
		newBidsCmd(flags),
		newProposalsCmd(flags),
		newWatchCmd(flags),
		newVersionCmd(),
	)

	return cmd
}

// session is a started application container for one command.
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	mono   monolith.Monolith
	module *onchain.Module
	start  func(context.Context) error
	close  func() error
}

func (r *session) service() *app.Service {
	return onchainDI.GetService(r.mono.Services())
}

func (r *session) Close() {
	r.module.Shutdown(r.mono)
	if err := r.close(); err != nil {
		r.log.Warn(context.Background(), "close failed", "error", err)
	}
}

// bootstrap loads configuration, applies flag overrides and registers the
// on-chain module. Logs go to logOut.
func bootstrap(ctx context.Context, flags *rootFlags, logOut io.Writer) (*session, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.App.LogLevel = flags.logLevel
	}
	if flags.cacheFirst {
		cfg.Subgraph.CachePolicy = domain.CacheFirst.String()
	}

	log := logger.New(logOut, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}

	module := &onchain.Module{}
	if err := mono.RegisterModules(module); err != nil {
		_ = mono.Close()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	return &session{
		cfg:    cfg,
		log:    log,
		mono:   mono,
		module: module,
		start: func(ctx context.Context) error {
			return mono.StartModules(ctx, module)
		},
		close: mono.Close,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "nouns %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return err
		},
	}
}

// stderr is where one-shot commands log, keeping stdout for JSON.
var stderr io.Writer = os.Stderr
