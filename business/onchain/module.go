// Package onchain implements the Nouns DAO on-chain data context: treasury
// balances, subgraph queries and live auction streams.
package onchain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"

	"github.com/nouns-dao/nouns-onchain/business/onchain/app"
	onchainDI "github.com/nouns-dao/nouns-onchain/business/onchain/di"
	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/business/onchain/infra/api"
	"github.com/nouns-dao/nouns-onchain/business/onchain/infra/ethereum"
	"github.com/nouns-dao/nouns-onchain/business/onchain/infra/subgraph"
	"github.com/nouns-dao/nouns-onchain/internal/cache"
	"github.com/nouns-dao/nouns-onchain/internal/config"
	"github.com/nouns-dao/nouns-onchain/internal/di"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/monolith"
)

var _ api.Service = (*app.Service)(nil)

// Module implements the on-chain bounded context.
type Module struct{}

// RegisterServices registers all on-chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register BalanceReader (private - internal dependency)
	di.RegisterToken(c, onchainDI.BalanceReader, func(sr di.ServiceRegistry) app.BalanceReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		reader, err := ethereum.NewBalanceReader(client, ethereum.BalanceReaderConfig{
			ChainID:     cfg.Ethereum.ChainID,
			Executor:    cfg.Treasury.ExecutorAddressHex(),
			StETH:       cfg.Treasury.StETHAddressHex(),
			CallTimeout: cfg.Ethereum.CallTimeout,
		}, log)
		if err != nil {
			panic("failed to create balance reader: " + err.Error())
		}
		return reader
	})

	// Register subgraph Client (private - internal dependency)
	di.RegisterToken(c, onchainDI.SubgraphClient, func(sr di.ServiceRegistry) *subgraph.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		store := sr.Get("cache").(cache.Store)

		client, err := subgraph.NewClient(subgraph.Config{
			URL:               cfg.Subgraph.URL,
			Timeout:           cfg.Subgraph.Timeout,
			RequestsPerMinute: cfg.Subgraph.RequestsPerMinute,
			RefreshTimeout:    cfg.Subgraph.RefreshTimeout,
			CacheTTL:          cfg.Cache.TTL,
			CachePrefix:       cfg.Cache.Prefix,
		}, store, log)
		if err != nil {
			panic("failed to create subgraph client: " + err.Error())
		}
		return client
	})

	// Register Service (public - exposed to other modules)
	di.RegisterToken(c, onchainDI.Service, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		policy, err := domain.ParseCachePolicy(cfg.Subgraph.CachePolicy)
		if err != nil {
			panic("invalid cache policy: " + err.Error())
		}

		svc, err := app.NewService(
			onchainDI.GetBalanceReader(sr),
			onchainDI.GetSubgraphClient(sr),
			app.ServiceConfig{
				Policy:                 policy,
				LiveAuctionInterval:    cfg.Polling.LiveAuctionInterval,
				SettledAuctionInterval: cfg.Polling.SettledAuctionInterval,
			},
			log)
		if err != nil {
			panic("failed to create on-chain service: " + err.Error())
		}
		return svc
	})

	// Register Router (public - mounted by the API server)
	di.RegisterToken(c, onchainDI.Router, func(sr di.ServiceRegistry) *gin.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		h := api.NewHandlers(onchainDI.GetService(sr), cfg.API.StreamKeepAlive, log)
		return api.NewRouter(h, cfg.API.AllowedOrigins)
	})

	return nil
}

// Startup builds the service and checks both upstreams. Unreachable
// upstreams are logged, not fatal; every fetch reports its own failure.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := onchainDI.GetService(mono.Services())

	if err := onchainDI.GetBalanceReader(mono.Services()).Ping(ctx); err != nil {
		log.Error(ctx, "ethereum node unreachable", "error", err)
	}
	if err := onchainDI.GetSubgraphClient(mono.Services()).Ping(ctx); err != nil {
		log.Error(ctx, "subgraph unreachable", "error", err)
	}

	log.Info(ctx, "onchain module started",
		"cache_policy", mono.Config().Subgraph.CachePolicy,
		"streams", len(svc.StreamStates()))
	return nil
}

// Shutdown stops the stream pollers and waits for background cache refreshes.
func (m *Module) Shutdown(mono monolith.Monolith) {
	onchainDI.GetService(mono.Services()).Close()
	onchainDI.GetSubgraphClient(mono.Services()).Close()
}
