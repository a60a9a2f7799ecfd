package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-envconfig"
	"github.com/shopspring/decimal"
)

// Page failure policies for the pool event pagination
const (
	PageFailureSkip = "skip"
	PageFailureFail = "fail"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `env:", prefix=SERVER_"`
	Pool        PoolConfig        `env:", prefix=POOL_"`
	Subgraph    SubgraphConfig    `env:", prefix=SUBGRAPH_"`
	PriceFeed   PriceFeedConfig   `env:", prefix=PRICEFEED_"`
	Chain       ChainConfig       `env:", prefix=CHAIN_"`
	Eligibility EligibilityConfig `env:", prefix=ELIGIBILITY_"`
	NATS        NATSConfig        `env:", prefix=NATS_"`
	Security    SecurityConfig    `env:", prefix=SECURITY_"`
	Logging     LoggingConfig     `env:", prefix=LOG_"`
	Monitoring  MonitoringConfig  `env:", prefix=MONITORING_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=120s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// PoolConfig identifies the liquidity pool and how its events are paged
type PoolConfig struct {
	ID                string        `env:"ID, default=0x4ab6f40241f01c9f6dcf8cc154d54b05477551c700010000000000000000001b"`
	PageSize          int           `env:"PAGE_SIZE, default=1000"`
	PageMaxRetries    int           `env:"PAGE_MAX_RETRIES, default=3"`
	PageRetryDelay    time.Duration `env:"PAGE_RETRY_DELAY, default=500ms"`
	PageMaxRetryDelay time.Duration `env:"PAGE_MAX_RETRY_DELAY, default=5s"`
	PageFailurePolicy string        `env:"PAGE_FAILURE_POLICY, default=skip"` // skip or fail
}

// SubgraphConfig holds the pool events indexer endpoint
type SubgraphConfig struct {
	URL     string        `env:"URL, default=https://api.thegraph.com/subgraphs/name/kyzooghost/balancer_aurora_fork"`
	Timeout time.Duration `env:"TIMEOUT, default=30s"`
}

// PriceFeedConfig holds CoinGecko configuration
type PriceFeedConfig struct {
	BaseURL    string        `env:"BASE_URL, default=https://api.coingecko.com/api/v3"`
	APIKey     string        `env:"API_KEY"`
	APIKeyPro  bool          `env:"API_KEY_PRO, default=false"`
	CoinID     string        `env:"COIN_ID, default=ethereum"`
	VsCurrency string        `env:"VS_CURRENCY, default=usd"`
	Days       string        `env:"DAYS, default=max"`
	Timeout    time.Duration `env:"TIMEOUT, default=10s"`
	RateLimit  time.Duration `env:"RATE_LIMIT, default=2s"` // minimum spacing between calls
}

// ChainConfig holds the node endpoint and gauge contract
type ChainConfig struct {
	RPCURL        string        `env:"RPC_URL, default=https://mainnet.aurora.dev"`
	GaugeAddress  string        `env:"GAUGE_ADDRESS, default=0xDE37F8a48C41F6C1A92Ac6792927F5151C7C4ba2"`
	StartBlock    uint64        `env:"START_BLOCK, default=80000000"`
	LogBlockRange uint64        `env:"LOG_BLOCK_RANGE, default=0"` // 0 queries the whole range at once
	Timeout       time.Duration `env:"TIMEOUT, default=60s"`
}

// EligibilityConfig holds the decision constants
type EligibilityConfig struct {
	MinEthThreshold string `env:"MIN_ETH_THRESHOLD, default=0.05"`
}

// NATSConfig holds NATS configuration, publishing is disabled without a URL
type NATSConfig struct {
	URL           string        `env:"URL"`
	Subject       string        `env:"SUBJECT, default=eligibility.checked"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=5s"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=Content-Type,X-Request-ID"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	MetricsEnabled     bool   `env:"METRICS_ENABLED, default=true"`
	MetricsNamespace   string `env:"METRICS_NAMESPACE, default=quest_eligibility"`
	HealthCheckEnabled bool   `env:"HEALTH_CHECK_ENABLED, default=true"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Pool.PageFailurePolicy = strings.ToLower(strings.TrimSpace(cfg.Pool.PageFailurePolicy))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Pool.ID == "" {
		return fmt.Errorf("pool id is required")
	}
	if c.Pool.PageSize <= 0 {
		return fmt.Errorf("invalid pool page size: %d", c.Pool.PageSize)
	}
	if c.Pool.PageMaxRetries < 0 {
		return fmt.Errorf("invalid pool page retries: %d", c.Pool.PageMaxRetries)
	}
	switch c.Pool.PageFailurePolicy {
	case PageFailureSkip, PageFailureFail:
	default:
		return fmt.Errorf("unknown page failure policy %q (want %s or %s)",
			c.Pool.PageFailurePolicy, PageFailureSkip, PageFailureFail)
	}

	if err := validateURL("subgraph url", c.Subgraph.URL); err != nil {
		return err
	}
	if err := validateURL("price feed base url", c.PriceFeed.BaseURL); err != nil {
		return err
	}
	if c.PriceFeed.CoinID == "" {
		return fmt.Errorf("price feed coin id is required")
	}

	if err := validateURL("chain rpc url", c.Chain.RPCURL); err != nil {
		return err
	}
	if !common.IsHexAddress(c.Chain.GaugeAddress) {
		return fmt.Errorf("invalid gauge address: %q", c.Chain.GaugeAddress)
	}

	if _, err := c.Threshold(); err != nil {
		return err
	}

	return nil
}

// Threshold returns the minimum ETH-equivalent deposit as a decimal
func (c *Config) Threshold() (decimal.Decimal, error) {
	threshold, err := decimal.NewFromString(strings.TrimSpace(c.Eligibility.MinEthThreshold))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid min eth threshold %q: %w", c.Eligibility.MinEthThreshold, err)
	}
	if threshold.IsNegative() {
		return decimal.Zero, fmt.Errorf("min eth threshold must not be negative: %s", threshold)
	}
	return threshold, nil
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	return nil
}
