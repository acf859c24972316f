package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYBOT_* environment variable overrides, and
// returns the final Config. An empty path uses defaults and environment
// only. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "POLYBOT_MODE")
	setStr(&cfg.LogLevel, "POLYBOT_LOG_LEVEL")
	setStr(&cfg.LogFormat, "POLYBOT_LOG_FORMAT")

	// ── Signal ──
	setInt(&cfg.Signal.IntervalMinutes, "POLYBOT_SIGNAL_INTERVAL_MINUTES")
	setInt(&cfg.Signal.LookbackMinutes, "POLYBOT_SIGNAL_LOOKBACK_MINUTES")
	setDuration(&cfg.Signal.SampleInterval, "POLYBOT_SIGNAL_SAMPLE_INTERVAL")
	setStr(&cfg.Signal.MomentumMode, "POLYBOT_SIGNAL_MOMENTUM_MODE")
	setFloat64(&cfg.Signal.VWAPThresholdPct, "POLYBOT_SIGNAL_VWAP_THRESHOLD_PCT")
	setFloat64(&cfg.Signal.MomentumThresholdPct, "POLYBOT_SIGNAL_MOMENTUM_THRESHOLD_PCT")
	setFloat64(&cfg.Signal.BasePositionPct, "POLYBOT_SIGNAL_BASE_POSITION_PCT")
	setBool(&cfg.Signal.UseHint, "POLYBOT_SIGNAL_USE_HINT")

	// ── Risk ──
	setFloat64(&cfg.Risk.InitialCapital, "POLYBOT_RISK_INITIAL_CAPITAL")
	setFloat64(&cfg.Risk.MaxPositionPct, "POLYBOT_RISK_MAX_POSITION_PCT")
	setInt(&cfg.Risk.MaxConcurrentPositions, "POLYBOT_RISK_MAX_CONCURRENT_POSITIONS")
	setFloat64(&cfg.Risk.MaxDailyDrawdownPct, "POLYBOT_RISK_MAX_DAILY_DRAWDOWN_PCT")
	setInt(&cfg.Risk.ConsecutiveLossHalt, "POLYBOT_RISK_CONSECUTIVE_LOSS_HALT")
	setInt(&cfg.Risk.DailyTradeLimit, "POLYBOT_RISK_DAILY_TRADE_LIMIT")

	// ── Loop ──
	setDuration(&cfg.Loop.PollInterval, "POLYBOT_LOOP_POLL_INTERVAL")
	setDuration(&cfg.Loop.RunFor, "POLYBOT_LOOP_RUN_FOR")
	setFloat64(&cfg.Loop.EntryPrice, "POLYBOT_LOOP_ENTRY_PRICE")
	setStr(&cfg.Loop.Timezone, "POLYBOT_LOOP_TIMEZONE")

	// ── Feed ──
	setStringSlice(&cfg.Feed.Sources, "POLYBOT_FEED_SOURCES")
	setStr(&cfg.Feed.Symbol, "POLYBOT_FEED_SYMBOL")
	setBool(&cfg.Feed.BinanceWS, "POLYBOT_FEED_BINANCE_WS")
	setBool(&cfg.Feed.Backfill, "POLYBOT_FEED_BACKFILL")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.SafeAddress, "POLYBOT_WALLET_SAFE_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYBOT_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYBOT_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.SeriesID, "POLYBOT_POLYMARKET_SERIES_ID")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "POLYBOT_CHAIN_RPC_URL")
	setStr(&cfg.Chain.USDCAddress, "POLYBOT_CHAIN_USDC_ADDRESS")
	setStr(&cfg.Chain.ChainlinkBTCUSD, "POLYBOT_CHAIN_CHAINLINK_BTC_USD")

	// ── Oracle ──
	setBool(&cfg.Oracle.Enabled, "POLYBOT_ORACLE_ENABLED")
	setStr(&cfg.Oracle.BaseURL, "POLYBOT_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.APIKey, "POLYBOT_ORACLE_API_KEY")
	setStr(&cfg.Oracle.APIKey, "OPENROUTER_API_KEY") // compatibility alias
	setStr(&cfg.Oracle.PrefilterModel, "POLYBOT_ORACLE_PREFILTER_MODEL")
	setStr(&cfg.Oracle.DecisionModel, "POLYBOT_ORACLE_DECISION_MODEL")

	// ── Journal ──
	setStr(&cfg.Journal.Dir, "POLYBOT_JOURNAL_DIR")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "POLYBOT_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "POLYBOT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "POLYBOT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "POLYBOT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYBOT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYBOT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYBOT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYBOT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYBOT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYBOT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYBOT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYBOT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYBOT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "POLYBOT_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYBOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchiveCron, "POLYBOT_S3_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POLYBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYBOT_NOTIFY_EVENTS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
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
