// Package config defines the configuration of the up/down trading bot and
// its validation.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYBOT_* environment variables.
type Config struct {
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	LogFormat  string           `toml:"log_format"`
	Signal     SignalConfig     `toml:"signal"`
	Window     WindowConfig     `toml:"window"`
	Risk       RiskConfig       `toml:"risk"`
	Loop       LoopConfig       `toml:"loop"`
	Feed       FeedConfig       `toml:"feed"`
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Chain      ChainConfig      `toml:"chain"`
	Oracle     OracleConfig     `toml:"oracle"`
	Journal    JournalConfig    `toml:"journal"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Notify     NotifyConfig     `toml:"notify"`
}

// SignalConfig holds the indicator and signal engine parameters.
type SignalConfig struct {
	IntervalMinutes      int      `toml:"interval_minutes"`
	LookbackMinutes      int      `toml:"lookback_minutes"`
	RSIPeriod            int      `toml:"rsi_period"`
	MomentumLookback     duration `toml:"momentum_lookback"`
	SampleInterval       duration `toml:"sample_interval"`
	MomentumMode         string   `toml:"momentum_mode"`
	VWAPThresholdPct     float64  `toml:"vwap_threshold_pct"`
	MomentumThresholdPct float64  `toml:"momentum_threshold_pct"`
	BasePositionPct      float64  `toml:"base_position_pct"`
	MinSamples15m        int      `toml:"min_samples_15m"`
	MinSamples30m        int      `toml:"min_samples_30m"`
	TrendShort           int      `toml:"trend_short"`
	TrendLong            int      `toml:"trend_long"`
	TrendBandPct         float64  `toml:"trend_band_pct"`
	UseHint              bool     `toml:"use_hint"`
}

// WindowConfig bounds the tradeable minutes of an interval. Zero values take
// the defaults of the configured interval length.
type WindowConfig struct {
	MinEntryMinute *int `toml:"min_entry_minute"`
	MaxEntryMinute *int `toml:"max_entry_minute"`
}

// RiskConfig holds the capital-protection limits.
type RiskConfig struct {
	InitialCapital         float64  `toml:"initial_capital"`
	MaxPositionPct         float64  `toml:"max_position_pct"`
	MaxConcurrentPositions int      `toml:"max_concurrent_positions"`
	MaxDailyDrawdownPct    float64  `toml:"max_daily_drawdown_pct"`
	DrawdownCooldown       duration `toml:"drawdown_cooldown"`
	ConsecutiveLossHalt    int      `toml:"consecutive_loss_halt"`
	LossStreakCooldown     duration `toml:"loss_streak_cooldown"`
	DailyTradeLimit        int      `toml:"daily_trade_limit"`
	MinOrderUSD            float64  `toml:"min_order_usd"`
}

// LoopConfig holds the execution loop timing.
type LoopConfig struct {
	PollInterval    duration `toml:"poll_interval"`
	SummaryInterval duration `toml:"summary_interval"`
	RunFor          duration `toml:"run_for"`
	OrderTimeout    duration `toml:"order_timeout"`
	FetchTimeout    duration `toml:"fetch_timeout"`
	NotifyTimeout   duration `toml:"notify_timeout"`
	EntryPrice      float64  `toml:"entry_price"`
	Timezone        string   `toml:"timezone"`
}

// FeedConfig selects the BTC price sources.
type FeedConfig struct {
	Sources    []string `toml:"sources"`
	Symbol     string   `toml:"symbol"`
	Retries    int      `toml:"retries"`
	RetryDelay duration `toml:"retry_delay"`
	BinanceWS  bool     `toml:"binance_ws"`
	Backfill   bool     `toml:"backfill"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	SafeAddress      string `toml:"safe_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and market selection.
type PolymarketConfig struct {
	ClobHost       string  `toml:"clob_host"`
	GammaHost      string  `toml:"gamma_host"`
	ChainID        int     `toml:"chain_id"`
	SignatureType  int     `toml:"signature_type"`
	SeriesID       string  `toml:"series_id"`
	MinMinutesLeft float64 `toml:"min_minutes_left"`
	MaxMinutesLeft float64 `toml:"max_minutes_left"`
}

// ChainConfig holds the Polygon RPC endpoint and contract addresses.
type ChainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	USDCAddress     string `toml:"usdc_address"`
	ChainlinkBTCUSD string `toml:"chainlink_btc_usd"`
}

// OracleConfig configures the optional directional-hint agent.
type OracleConfig struct {
	Enabled        bool     `toml:"enabled"`
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	PrefilterModel string   `toml:"prefilter_model"`
	DecisionModel  string   `toml:"decision_model"`
	Timeout        duration `toml:"timeout"`
}

// JournalConfig locates the CSV audit journals.
type JournalConfig struct {
	Dir         string `toml:"dir"`
	SignalsFile string `toml:"signals_file"`
	TradesFile  string `toml:"trades_file"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ArchiveCron    string `toml:"archive_cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the standard values for a $100
// paper account trading the 15-minute market.
func Defaults() Config {
	return Config{
		Mode:      "paper",
		LogLevel:  "info",
		LogFormat: "json",
		Signal: SignalConfig{
			IntervalMinutes:      15,
			LookbackMinutes:      15,
			RSIPeriod:            14,
			MomentumLookback:     duration{60 * time.Second},
			SampleInterval:       duration{5 * time.Second},
			MomentumMode:         "count",
			VWAPThresholdPct:     0.15,
			MomentumThresholdPct: 0.01,
			BasePositionPct:      0.10,
			MinSamples15m:        30,
			MinSamples30m:        60,
			TrendShort:           5,
			TrendLong:            20,
			TrendBandPct:         0.05,
		},
		Risk: RiskConfig{
			InitialCapital:         100,
			MaxPositionPct:         0.07,
			MaxConcurrentPositions: 2,
			MaxDailyDrawdownPct:    0.10,
			DrawdownCooldown:       duration{4 * time.Hour},
			ConsecutiveLossHalt:    3,
			LossStreakCooldown:     duration{time.Hour},
			DailyTradeLimit:        8,
			MinOrderUSD:            1.0,
		},
		Loop: LoopConfig{
			PollInterval:    duration{60 * time.Second},
			SummaryInterval: duration{time.Hour},
			OrderTimeout:    duration{30 * time.Second},
			FetchTimeout:    duration{10 * time.Second},
			NotifyTimeout:   duration{10 * time.Second},
			EntryPrice:      0.50,
			Timezone:        "UTC",
		},
		Feed: FeedConfig{
			Sources:    []string{"cryptocompare", "chainlink", "binance", "coincap", "coingecko"},
			Symbol:     "BTCUSDT",
			Retries:    3,
			RetryDelay: duration{2 * time.Second},
			Backfill:   true,
		},
		Polymarket: PolymarketConfig{
			ClobHost:       "https://clob.polymarket.com",
			GammaHost:      "https://gamma-api.polymarket.com",
			ChainID:        137,
			SignatureType:  2,
			SeriesID:       "10192",
			MinMinutesLeft: 3,
			MaxMinutesLeft: 12,
		},
		Chain: ChainConfig{
			RPCURL:          "https://polygon-rpc.com",
			USDCAddress:     "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			ChainlinkBTCUSD: "0xc907E116054Ad103354f0D35050b556f00A8d2aD",
		},
		Oracle: OracleConfig{
			BaseURL:        "https://openrouter.ai/api/v1/",
			PrefilterModel: "deepseek/deepseek-chat",
			DecisionModel:  "anthropic/claude-sonnet-4",
			Timeout:        duration{60 * time.Second},
		},
		Journal: JournalConfig{
			Dir:         "data",
			SignalsFile: "signals.csv",
			TradesFile:  "trades.csv",
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
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
			KeyPrefix:  "polybot",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polybot-data",
			ForcePathStyle: true,
			ArchiveCron:    "10 0 * * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Metrics: MetricsConfig{Enabled: true},
		Notify: NotifyConfig{
			Events: []string{"startup", "trade", "settlement", "halt", "summary", "shutdown", "error"},
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = []string{"paper", "live", "signal"}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// FeedSources enumerates the known price source names.
var FeedSources = []string{"cryptocompare", "chainlink", "binance", "coincap", "coingecko"}

// EntryWindow returns the effective entry window bounds for the configured
// interval.
func (c *Config) EntryWindow() (minMinute, maxMinute int) {
	minMinute, maxMinute = 2, 10
	if c.Signal.IntervalMinutes == 30 {
		minMinute, maxMinute = 3, 20
	}
	if c.Window.MinEntryMinute != nil {
		minMinute = *c.Window.MinEntryMinute
	}
	if c.Window.MaxEntryMinute != nil {
		maxMinute = *c.Window.MaxEntryMinute
	}
	return minMinute, maxMinute
}

// Location returns the configured day-rollover timezone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Loop.Timezone == "" || strings.EqualFold(c.Loop.Timezone, "UTC") {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Loop.Timezone)
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !slices.Contains(validModes, mode) {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: %s)", c.Mode, strings.Join(validModes, ", ")))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	// Signal
	s := c.Signal
	if s.IntervalMinutes != 15 && s.IntervalMinutes != 30 {
		errs = append(errs, fmt.Sprintf("signal: interval_minutes must be 15 or 30, got %d", s.IntervalMinutes))
	}
	if s.BasePositionPct <= 0 || s.BasePositionPct > 1 {
		errs = append(errs, fmt.Sprintf("signal: base_position_pct must be in (0, 1], got %v", s.BasePositionPct))
	}
	if s.VWAPThresholdPct <= 0 {
		errs = append(errs, "signal: vwap_threshold_pct must be > 0")
	}
	if s.MomentumThresholdPct <= 0 {
		errs = append(errs, "signal: momentum_threshold_pct must be > 0")
	}
	if s.TrendBandPct <= 0 {
		errs = append(errs, "signal: trend_band_pct must be > 0")
	}
	if s.RSIPeriod < 1 {
		errs = append(errs, "signal: rsi_period must be >= 1")
	}
	if s.LookbackMinutes < 1 {
		errs = append(errs, "signal: lookback_minutes must be >= 1")
	}
	if s.MinSamples15m < 1 {
		errs = append(errs, fmt.Sprintf("signal: min_samples_15m must be >= 1, got %d", s.MinSamples15m))
	}
	if s.MinSamples30m < 1 {
		errs = append(errs, fmt.Sprintf("signal: min_samples_30m must be >= 1, got %d", s.MinSamples30m))
	}
	if s.SampleInterval.Duration <= 0 {
		errs = append(errs, "signal: sample_interval must be > 0")
	}
	if s.MomentumLookback.Duration <= 0 {
		errs = append(errs, "signal: momentum_lookback must be > 0")
	}
	if s.MomentumMode != "count" && s.MomentumMode != "time" {
		errs = append(errs, fmt.Sprintf("signal: momentum_mode must be count or time, got %q", s.MomentumMode))
	}
	if s.TrendShort < 1 || s.TrendLong <= s.TrendShort {
		errs = append(errs, "signal: trend_long must exceed trend_short, both >= 1")
	}

	// Window
	if s.IntervalMinutes == 15 || s.IntervalMinutes == 30 {
		lo, hi := c.EntryWindow()
		if lo < 0 || lo >= s.IntervalMinutes || hi < 0 || hi >= s.IntervalMinutes {
			errs = append(errs, fmt.Sprintf("window: entry minutes must be in [0, %d), got %d-%d", s.IntervalMinutes, lo, hi))
		}
		if lo > hi {
			errs = append(errs, fmt.Sprintf("window: min_entry_minute %d exceeds max_entry_minute %d", lo, hi))
		}
	}

	// Risk
	r := c.Risk
	if r.MaxPositionPct <= 0 || r.MaxPositionPct > 1 {
		errs = append(errs, fmt.Sprintf("risk: max_position_pct must be in (0, 1], got %v", r.MaxPositionPct))
	}
	if r.InitialCapital <= 0 {
		errs = append(errs, "risk: initial_capital must be > 0")
	}
	if r.MaxDailyDrawdownPct <= 0 || r.MaxDailyDrawdownPct > 1 {
		errs = append(errs, "risk: max_daily_drawdown_pct must be in (0, 1]")
	}
	if r.MaxConcurrentPositions < 1 {
		errs = append(errs, "risk: max_concurrent_positions must be >= 1")
	}
	if r.ConsecutiveLossHalt < 1 {
		errs = append(errs, "risk: consecutive_loss_halt must be >= 1")
	}
	if r.DailyTradeLimit < 1 {
		errs = append(errs, "risk: daily_trade_limit must be >= 1")
	}
	if r.MinOrderUSD <= 0 {
		errs = append(errs, "risk: min_order_usd must be > 0")
	}

	// Loop
	if c.Loop.PollInterval.Duration <= 0 {
		errs = append(errs, "loop: poll_interval must be > 0")
	}
	if c.Loop.EntryPrice <= 0 || c.Loop.EntryPrice >= 1 {
		errs = append(errs, fmt.Sprintf("loop: entry_price must be in (0, 1), got %v", c.Loop.EntryPrice))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("loop: unknown timezone %q", c.Loop.Timezone))
	}

	// Feed
	if len(c.Feed.Sources) == 0 {
		errs = append(errs, "feed: sources must not be empty")
	}
	for _, src := range c.Feed.Sources {
		if !slices.Contains(FeedSources, strings.ToLower(src)) {
			errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: %s)", src, strings.Join(FeedSources, ", ")))
		}
	}
	if c.Feed.Symbol == "" && (slices.Contains(c.Feed.Sources, "binance") || c.Feed.BinanceWS || c.Feed.Backfill) {
		errs = append(errs, "feed: symbol is required for binance")
	}

	// Wallet
	if mode == "live" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode live")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host must not be empty")
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required for mode live")
		}
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	if c.Polymarket.SeriesID == "" {
		errs = append(errs, "polymarket: series_id must not be empty")
	}
	if c.Polymarket.MinMinutesLeft > c.Polymarket.MaxMinutesLeft {
		errs = append(errs, "polymarket: min_minutes_left must not exceed max_minutes_left")
	}

	// Oracle
	if s.UseHint && !c.Oracle.Enabled {
		errs = append(errs, "signal: use_hint requires oracle.enabled")
	}
	if c.Oracle.Enabled {
		if c.Oracle.APIKey == "" {
			errs = append(errs, "oracle: api_key is required when enabled")
		}
		if c.Oracle.PrefilterModel == "" || c.Oracle.DecisionModel == "" {
			errs = append(errs, "oracle: prefilter_model and decision_model must be set")
		}
	}

	if c.Journal.Dir == "" {
		errs = append(errs, "journal: dir must not be empty")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 || c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if err := validateCron(c.S3.ArchiveCron); err != nil {
			errs = append(errs, fmt.Sprintf("s3: archive_cron: %v", err))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validateCron checks the 5-field shape only; the archive job parses the
// fields.
func validateCron(expr string) error {
	if n := len(strings.Fields(expr)); n != 5 {
		return fmt.Errorf("expected 5 fields, got %d", n)
	}
	return nil
}
