package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	lo, hi := cfg.EntryWindow()
	assert.Equal(t, 2, lo)
	assert.Equal(t, 10, hi)

	cfg.Signal.IntervalMinutes = 30
	lo, hi = cfg.EntryWindow()
	assert.Equal(t, 3, lo)
	assert.Equal(t, 20, hi)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"interval", func(c *Config) { c.Signal.IntervalMinutes = 5 }, "interval_minutes must be 15 or 30"},
		{"window range", func(c *Config) { c.Window.MaxEntryMinute = intp(15) }, "entry minutes must be in [0, 15)"},
		{"window order", func(c *Config) { c.Window.MinEntryMinute, c.Window.MaxEntryMinute = intp(9), intp(4) }, "exceeds max_entry_minute"},
		{"max position", func(c *Config) { c.Risk.MaxPositionPct = 1.5 }, "max_position_pct must be in (0, 1]"},
		{"base position", func(c *Config) { c.Signal.BasePositionPct = 0 }, "base_position_pct must be in (0, 1]"},
		{"threshold", func(c *Config) { c.Signal.VWAPThresholdPct = -1 }, "vwap_threshold_pct must be > 0"},
		{"min samples 15m", func(c *Config) { c.Signal.MinSamples15m = 0 }, "min_samples_15m must be >= 1, got 0"},
		{"min samples 30m", func(c *Config) { c.Signal.MinSamples30m = -5 }, "min_samples_30m must be >= 1, got -5"},
		{"live wallet", func(c *Config) { c.Mode = "live" }, "private_key or encrypted_key_path"},
		{"oracle key", func(c *Config) { c.Oracle.Enabled = true }, "oracle: api_key is required"},
		{"hint without oracle", func(c *Config) { c.Signal.UseHint = true }, "use_hint requires oracle.enabled"},
		{"feed source", func(c *Config) { c.Feed.Sources = []string{"binance", "kraken"} }, `unknown source "kraken"`},
		{"mode", func(c *Config) { c.Mode = "arbitrage" }, `unknown mode "arbitrage"`},
		{"timezone", func(c *Config) { c.Loop.Timezone = "Mars/Olympus" }, "unknown timezone"},
		{"cron", func(c *Config) { c.S3.Enabled = true; c.S3.ArchiveCron = "daily" }, "archive_cron"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAggregates(t *testing.T) {
	cfg := Defaults()
	cfg.Signal.IntervalMinutes = 20
	cfg.Risk.MaxPositionPct = 0
	cfg.Oracle.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed:\n  - ")
	assert.Contains(t, err.Error(), "interval_minutes")
	assert.Contains(t, err.Error(), "max_position_pct")
	assert.Contains(t, err.Error(), "oracle")
}

func TestBasePositionAboveCapIsAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.Signal.BasePositionPct = 0.10
	cfg.Risk.MaxPositionPct = 0.07
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "signal"

[signal]
interval_minutes = 30
sample_interval = "10s"

[window]
min_entry_minute = 0

[feed]
sources = ["binance", "coingecko"]
`), 0o644))

	t.Setenv("POLYBOT_RISK_INITIAL_CAPITAL", "250")
	t.Setenv("POLYBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "signal", cfg.Mode)
	assert.Equal(t, 30, cfg.Signal.IntervalMinutes)
	assert.Equal(t, 10*time.Second, cfg.Signal.SampleInterval.Duration)
	assert.Equal(t, 60*time.Second, cfg.Signal.MomentumLookback.Duration)
	assert.Equal(t, []string{"binance", "coingecko"}, cfg.Feed.Sources)
	assert.InDelta(t, 250, cfg.Risk.InitialCapital, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)

	lo, hi := cfg.EntryWindow()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 20, hi)
	require.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xabc"
	cfg.Oracle.APIKey = "sk-or-1"
	cfg.Server.APIKey = "token"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Oracle.APIKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.Wallet.KeyPassword)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)

	out.Feed.Sources[0] = "changed"
	assert.Equal(t, "cryptocompare", cfg.Feed.Sources[0])
}
