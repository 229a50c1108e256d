// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Mainnet defaults.
const (
	DefaultSubgraphURL     = "https://api.goldsky.com/api/public/project_cldf2o9pqagp43svvbk5u3kmo/subgraphs/nouns/prod/gn"
	DefaultExecutorAddress = "0x0BC3807Ec262cB779b38D65b38158acC3bfedE10"
	DefaultStETHAddress    = "0xae7ab96520de3a18e5e111b5eaab095312d7fe84"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Treasury  TreasuryConfig  `mapstructure:"treasury"`
	Subgraph  SubgraphConfig  `mapstructure:"subgraph"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Polling   PollingConfig   `mapstructure:"polling"`
	API       APIConfig       `mapstructure:"api"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	HTTPURL     string        `mapstructure:"http_url"`
	ChainID     uint64        `mapstructure:"chain_id"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// TreasuryConfig holds the addresses whose balances make up the treasury.
type TreasuryConfig struct {
	ExecutorAddress string `mapstructure:"executor_address"`
	StETHAddress    string `mapstructure:"steth_address"`
}

// ExecutorAddressHex returns the executor address as common.Address.
func (c *TreasuryConfig) ExecutorAddressHex() common.Address {
	return common.HexToAddress(c.ExecutorAddress)
}

// StETHAddressHex returns the stETH token address as common.Address.
func (c *TreasuryConfig) StETHAddressHex() common.Address {
	return common.HexToAddress(c.StETHAddress)
}

// SubgraphConfig holds the GraphQL endpoint settings.
type SubgraphConfig struct {
	URL               string        `mapstructure:"url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	CachePolicy       string        `mapstructure:"cache_policy"`
	RefreshTimeout    time.Duration `mapstructure:"refresh_timeout"`
}

// CacheConfig selects and tunes the query cache backend.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis
	Size          int           `mapstructure:"size"`
	TTL           time.Duration `mapstructure:"ttl"`
	Prefix        string        `mapstructure:"prefix"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// PollingConfig holds the live stream intervals.
type PollingConfig struct {
	LiveAuctionInterval    time.Duration `mapstructure:"live_auction_interval"`
	SettledAuctionInterval time.Duration `mapstructure:"settled_auction_interval"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// StreamKeepAlive is the SSE comment interval on idle streams.
	StreamKeepAlive time.Duration `mapstructure:"stream_keep_alive"`
}

// HealthConfig holds the health probe server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("NOUNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "NOUNS_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "NOUNS_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "NOUNS_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.http_url", "NOUNS_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "NOUNS_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Treasury
	v.BindEnv("treasury.executor_address", "NOUNS_EXECUTOR_ADDRESS")
	v.BindEnv("treasury.steth_address", "NOUNS_STETH_ADDRESS")

	// Subgraph
	v.BindEnv("subgraph.url", "NOUNS_SUBGRAPH_URL", "SUBGRAPH_URL")
	v.BindEnv("subgraph.cache_policy", "NOUNS_CACHE_POLICY")

	// Cache
	v.BindEnv("cache.backend", "NOUNS_CACHE_BACKEND")
	v.BindEnv("cache.redis_addr", "NOUNS_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("cache.redis_password", "NOUNS_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "NOUNS_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "NOUNS_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "NOUNS_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "NOUNS_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "nouns-onchain")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.http_url", "https://ethereum-rpc.publicnode.com")
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.call_timeout", "10s")

	// Treasury defaults (Nouns DAO executor and Lido stETH)
	v.SetDefault("treasury.executor_address", DefaultExecutorAddress)
	v.SetDefault("treasury.steth_address", DefaultStETHAddress)

	// Subgraph defaults
	v.SetDefault("subgraph.url", DefaultSubgraphURL)
	v.SetDefault("subgraph.timeout", "15s")
	v.SetDefault("subgraph.requests_per_minute", 300)
	v.SetDefault("subgraph.cache_policy", "return_cache_data_and_fetch")
	v.SetDefault("subgraph.refresh_timeout", "20s")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.prefix", "nouns")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	// Polling defaults
	v.SetDefault("polling.live_auction_interval", "5s")
	v.SetDefault("polling.settled_auction_interval", "30s")

	// Servers
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.stream_keep_alive", "15s")
	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "nouns-onchain")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if c.Subgraph.URL == "" {
		return fmt.Errorf("subgraph.url is required")
	}
	if !common.IsHexAddress(c.Treasury.ExecutorAddress) {
		return fmt.Errorf("invalid treasury.executor_address: %s", c.Treasury.ExecutorAddress)
	}
	if !common.IsHexAddress(c.Treasury.StETHAddress) {
		return fmt.Errorf("invalid treasury.steth_address: %s", c.Treasury.StETHAddress)
	}
	switch c.Subgraph.CachePolicy {
	case "network_only", "return_cache_data_and_fetch", "cache_first":
	default:
		return fmt.Errorf("invalid subgraph.cache_policy: %s", c.Subgraph.CachePolicy)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache.backend: %s", c.Cache.Backend)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.TraceProvider {
		case "zipkin", "otlp-grpc", "otlp-http", "console", "none":
		default:
			return fmt.Errorf("invalid telemetry.trace_provider: %s", c.Telemetry.TraceProvider)
		}
	}
	if c.Polling.LiveAuctionInterval <= 0 || c.Polling.SettledAuctionInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	return nil
}
