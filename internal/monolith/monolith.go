// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nouns-dao/nouns-onchain/internal/cache"
	"github.com/nouns-dao/nouns-onchain/internal/config"
	"github.com/nouns-dao/nouns-onchain/internal/di"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

// Monolith is the main application container. The node client and cache
// store are reached through Services under "ethClient" and "cache".
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	ethClient *ethclient.Client
	cache     cache.Store
	container di.Container
}

// New dials the node, opens the cache backend and seeds the container.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	ethClient, err := ethclient.DialContext(ctx, cfg.Ethereum.HTTPURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum: %w", err)
	}

	store, err := newCache(ctx, cfg.Cache)
	if err != nil {
		ethClient.Close()
		return nil, err
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("cache", store)

	log.Info(ctx, "infrastructure ready",
		"chain_id", cfg.Ethereum.ChainID,
		"cache_backend", cfg.Cache.Backend)

	return &app{
		config:    cfg,
		logger:    log,
		ethClient: ethClient,
		cache:     store,
		container: container,
	}, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cache.Backend(cfg.Backend) {
	case cache.BackendRedis:
		store, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return cache.NewMemory(cfg.Size, cfg.TTL), nil
	}
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	var err error
	if a.cache != nil {
		err = a.cache.Close()
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return err
}
