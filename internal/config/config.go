// Package config defines the dexarb configuration tree, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DEXARB_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Tokens   TokensConfig   `toml:"tokens"`
	Venues   []VenueConfig  `toml:"venues"`
	Project  ProjectConfig  `toml:"project"`
	Sink     SinkConfig     `toml:"sink"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`

	// MetricsAddr serves /metrics for the bot when set (e.g. ":9090").
	// The sink server always serves its own /metrics.
	MetricsAddr string `toml:"metrics_addr"`
}

// ChainConfig selects the node and network.
type ChainConfig struct {
	WSURL       string   `toml:"ws_url"`
	ChainID     int64    `toml:"chain_id"`
	CallTimeout duration `toml:"call_timeout"`
}

// WalletConfig holds the trading account credential.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// TokensConfig names the pair. ArbFor is token0 (borrowed and repaid),
// ArbAgainst is token1.
type TokensConfig struct {
	ArbFor     string `toml:"arb_for"`
	ArbAgainst string `toml:"arb_against"`
	PoolFee    int    `toml:"pool_fee"`
}

// VenueConfig is one of the two venues. Pool may be empty, in which case it
// is resolved from Factory at startup.
type VenueConfig struct {
	Name    string `toml:"name"`
	Pool    string `toml:"pool"`
	Quoter  string `toml:"quoter"`
	Router  string `toml:"router"`
	Factory string `toml:"factory"`
}

// ProjectConfig holds the decision and settlement parameters.
type ProjectConfig struct {
	PriceUnits        int     `toml:"price_units"`
	PriceDifference   float64 `toml:"price_difference"` // percent
	GasLimit          uint64  `toml:"gas_limit"`
	GasPriceGwei      float64 `toml:"gas_price_gwei"`
	TradeFraction     float64 `toml:"trade_fraction"`
	Deployed          bool    `toml:"deployed"`
	SettlementAddress string  `toml:"settlement_address"`
	BusyPolicy        string  `toml:"busy_policy"`
}

// SinkConfig is where the bot ships trade logs. An empty URL disables
// shipping.
type SinkConfig struct {
	URL       string   `toml:"url"`
	APIKey    string   `toml:"api_key"`
	QueueSize int      `toml:"queue_size"`
	Timeout   duration `toml:"timeout"`
}

// ServerConfig holds the sink HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// PostgresConfig holds PostgreSQL connection parameters. When disabled the
// sink keeps trade logs in memory and executions are not recorded.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the shared execution
// lease, the swap bus and the sink rate limiter.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LeaseKey   string   `toml:"lease_key"`
	LeaseTTL   duration `toml:"lease_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ArchiveConfig controls moving old trade logs from Postgres to S3.
type ArchiveConfig struct {
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
	BatchSize     int    `toml:"batch_size"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values config.example.toml
// documents.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:     42161,
			CallTimeout: duration{10 * time.Second},
		},
		Tokens: TokensConfig{
			PoolFee: 500,
		},
		Project: ProjectConfig{
			PriceUnits:      8,
			PriceDifference: 0.5,
			GasLimit:        400_000,
			GasPriceGwei:    0.1,
			TradeFraction:   0.5,
			BusyPolicy:      "drop",
		},
		Sink: SinkConfig{
			URL:       "http://localhost:5001",
			QueueSize: 256,
			Timeout:   duration{5 * time.Second},
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       5001,
			RateLimit:  600,
			RateWindow: duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dexarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			LeaseKey:   "dexarb:execution",
			LeaseTTL:   duration{2 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "dexarb-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Cron:          "0 3 * * *",
			BatchSize:     5000,
		},
		Notify: NotifyConfig{
			Events: []string{"execution_confirmed", "execution_failed", "subscription_lost"},
		},
		Mode:     "bot",
		LogLevel: "info",
	}
}

// Mode values.
const (
	ModeBot  = "bot"
	ModeSink = "sink"
	ModeFull = "full"
)

var validModes = map[string]bool{
	ModeBot:  true,
	ModeSink: true,
	ModeFull: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// RunsBot reports whether the mode includes the arbitrage bot.
func (c *Config) RunsBot() bool {
	m := strings.ToLower(c.Mode)
	return m == ModeBot || m == ModeFull
}

// RunsSink reports whether the mode includes the trade-log sink.
func (c *Config) RunsSink() bool {
	m := strings.ToLower(c.Mode)
	return m == ModeSink || m == ModeFull
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: bot, sink, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.RunsBot() {
		errs = append(errs, c.validateBot()...)
	}

	if c.RunsSink() && c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LeaseTTL.Duration <= 0 {
			errs = append(errs, "redis: lease_ttl must be > 0")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archiving needs postgres.enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Cron == "" {
			errs = append(errs, "archive: cron must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateBot() []string {
	var errs []string

	if c.Chain.WSURL == "" {
		errs = append(errs, "chain: ws_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.CallTimeout.Duration <= 0 {
		errs = append(errs, "chain: call_timeout must be > 0")
	}

	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
	}
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	errs = checkAddress(errs, "tokens.arb_for", c.Tokens.ArbFor, true)
	errs = checkAddress(errs, "tokens.arb_against", c.Tokens.ArbAgainst, true)
	if c.Tokens.ArbFor != "" && strings.EqualFold(c.Tokens.ArbFor, c.Tokens.ArbAgainst) {
		errs = append(errs, "tokens: arb_for and arb_against must differ")
	}
	if c.Tokens.PoolFee <= 0 || c.Tokens.PoolFee >= 1<<24 {
		errs = append(errs, fmt.Sprintf("tokens: pool_fee must be a uint24 fee tier, got %d", c.Tokens.PoolFee))
	}

	if len(c.Venues) != 2 {
		errs = append(errs, fmt.Sprintf("venues: exactly two venues are required, got %d", len(c.Venues)))
	}
	names := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		prefix := fmt.Sprintf("venues[%d]", i)
		if v.Name == "" {
			errs = append(errs, prefix+": name must not be empty")
		} else if names[v.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate venue name %q", prefix, v.Name))
		}
		names[v.Name] = true
		errs = checkAddress(errs, prefix+".quoter", v.Quoter, true)
		errs = checkAddress(errs, prefix+".router", v.Router, true)
		errs = checkAddress(errs, prefix+".pool", v.Pool, false)
		errs = checkAddress(errs, prefix+".factory", v.Factory, false)
		if v.Pool == "" && v.Factory == "" {
			errs = append(errs, prefix+": either pool or factory must be set")
		}
	}

	if c.Project.PriceUnits < 0 {
		errs = append(errs, "project: price_units must be >= 0")
	}
	if c.Project.PriceDifference <= 0 {
		errs = append(errs, "project: price_difference must be > 0")
	}
	if c.Project.GasLimit == 0 {
		errs = append(errs, "project: gas_limit must be > 0")
	}
	if c.Project.GasPriceGwei <= 0 {
		errs = append(errs, "project: gas_price_gwei must be > 0")
	}
	if c.Project.TradeFraction <= 0 || c.Project.TradeFraction > 1 {
		errs = append(errs, "project: trade_fraction must be in (0, 1]")
	}
	if c.Project.Deployed {
		errs = checkAddress(errs, "project.settlement_address", c.Project.SettlementAddress, true)
	}
	switch strings.ToLower(c.Project.BusyPolicy) {
	case "drop", "coalesce":
	default:
		errs = append(errs, fmt.Sprintf("project: unknown busy_policy %q (valid: drop, coalesce)", c.Project.BusyPolicy))
	}

	if c.Sink.URL != "" && c.Sink.QueueSize < 1 {
		errs = append(errs, "sink: queue_size must be >= 1")
	}
	return errs
}

func checkAddress(errs []string, field, value string, required bool) []string {
	if value == "" {
		if required {
			return append(errs, field+" must be set")
		}
		return errs
	}
	if !common.IsHexAddress(value) {
		return append(errs, fmt.Sprintf("%s: %q is not a hex address", field, value))
	}
	return errs
}
