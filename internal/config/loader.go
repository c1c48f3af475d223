package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// alchemyArbitrumWS is the websocket endpoint template used when only
// ALCHEMY_API_KEY is provided.
const alchemyArbitrumWS = "wss://arb-mainnet.g.alchemy.com/v2/"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// PRIVATE_KEY and ALCHEMY_API_KEY are honoured as fallbacks for existing
// .env files.
func applyEnvOverrides(cfg *Config) {
	// ── Legacy .env names ──
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")
	if key := os.Getenv("ALCHEMY_API_KEY"); key != "" && cfg.Chain.WSURL == "" {
		cfg.Chain.WSURL = alchemyArbitrumWS + key
	}

	// ── Chain ──
	setStr(&cfg.Chain.WSURL, "DEXARB_CHAIN_WS_URL")
	setInt64(&cfg.Chain.ChainID, "DEXARB_CHAIN_CHAIN_ID")
	setDuration(&cfg.Chain.CallTimeout, "DEXARB_CHAIN_CALL_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "DEXARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "DEXARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "DEXARB_WALLET_KEY_PASSWORD")

	// ── Tokens ──
	setStr(&cfg.Tokens.ArbFor, "DEXARB_TOKENS_ARB_FOR")
	setStr(&cfg.Tokens.ArbAgainst, "DEXARB_TOKENS_ARB_AGAINST")
	setInt(&cfg.Tokens.PoolFee, "DEXARB_TOKENS_POOL_FEE")

	// ── Project ──
	setInt(&cfg.Project.PriceUnits, "DEXARB_PROJECT_PRICE_UNITS")
	setFloat64(&cfg.Project.PriceDifference, "DEXARB_PROJECT_PRICE_DIFFERENCE")
	setUint64(&cfg.Project.GasLimit, "DEXARB_PROJECT_GAS_LIMIT")
	setFloat64(&cfg.Project.GasPriceGwei, "DEXARB_PROJECT_GAS_PRICE_GWEI")
	setFloat64(&cfg.Project.TradeFraction, "DEXARB_PROJECT_TRADE_FRACTION")
	setBool(&cfg.Project.Deployed, "DEXARB_PROJECT_DEPLOYED")
	setStr(&cfg.Project.SettlementAddress, "DEXARB_PROJECT_SETTLEMENT_ADDRESS")
	setStr(&cfg.Project.BusyPolicy, "DEXARB_PROJECT_BUSY_POLICY")

	// ── Sink client ──
	setStr(&cfg.Sink.URL, "DEXARB_SINK_URL")
	setStr(&cfg.Sink.APIKey, "DEXARB_SINK_API_KEY")
	setInt(&cfg.Sink.QueueSize, "DEXARB_SINK_QUEUE_SIZE")
	setDuration(&cfg.Sink.Timeout, "DEXARB_SINK_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEXARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "DEXARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEXARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DEXARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DEXARB_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "DEXARB_SERVER_RATE_WINDOW")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DEXARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DEXARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEXARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEXARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEXARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEXARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEXARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEXARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEXARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEXARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEXARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.LeaseKey, "DEXARB_REDIS_LEASE_KEY")
	setDuration(&cfg.Redis.LeaseTTL, "DEXARB_REDIS_LEASE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DEXARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DEXARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEXARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEXARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DEXARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DEXARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEXARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEXARB_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "DEXARB_S3_PREFIX")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "DEXARB_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "DEXARB_ARCHIVE_CRON")
	setInt(&cfg.Archive.BatchSize, "DEXARB_ARCHIVE_BATCH_SIZE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEXARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEXARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEXARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DEXARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEXARB_MODE")
	setStr(&cfg.LogLevel, "DEXARB_LOG_LEVEL")
	setStr(&cfg.MetricsAddr, "DEXARB_METRICS_ADDR")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
