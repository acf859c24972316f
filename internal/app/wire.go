package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/optimizeforall/polymarket-bot/internal/blob/s3"
	"github.com/optimizeforall/polymarket-bot/internal/cache/redis"
	"github.com/optimizeforall/polymarket-bot/internal/config"
	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/metrics"
	"github.com/optimizeforall/polymarket-bot/internal/notify"
	"github.com/optimizeforall/polymarket-bot/internal/server/handler"
	"github.com/optimizeforall/polymarket-bot/internal/store/csvlog"
	"github.com/optimizeforall/polymarket-bot/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes run on. Every
// postgres, redis and s3 field is nil when that backend is disabled.
type Dependencies struct {
	// Stores
	SignalStore domain.SignalStore
	TradeStore  domain.TradeStore
	AuditStore  domain.AuditStore
	FileJournal *csvlog.Journal

	// Caches
	PriceCache  domain.PriceCache
	MarketCache domain.MarketCache
	RiskCache   domain.RiskStateCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics

	// Health probes by component name, served on /api/health.
	Checks map[string]handler.CheckFunc
}

// Wire constructs the infrastructure from cfg and returns it together with a
// cleanup function that releases it in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: map[string]handler.CheckFunc{}}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Metrics = metrics.NewMetrics(reg)

	// --- CSV journal (always on) ---
	journal, err := csvlog.Open(cfg.Journal.Dir, cfg.Journal.SignalsFile, cfg.Journal.TradesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: journal: %w", err)
	}
	closers = append(closers, func() { _ = journal.Close() })
	deps.FileJournal = journal
	sigPath, tradePath := journal.Paths()
	logger.InfoContext(ctx, "csv journal open",
		slog.String("signals", filepath.Clean(sigPath)),
		slog.String("trades", filepath.Clean(tradePath)),
	)

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.SignalStore = postgres.NewSignalStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.RiskCache = redis.NewRiskStateCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, orderRateLimit, orderRateWindow)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, 0)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		writer := s3blob.NewWriter(s3Client)
		deps.BlobWriter = writer

		var signals s3blob.SignalSource
		var trades s3blob.TradeSource
		if deps.SignalStore != nil {
			signals, trades = deps.SignalStore, deps.TradeStore
		}
		deps.Archiver = s3blob.NewArchiver(writer, signals, trades, deps.AuditStore)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Loop.NotifyTimeout.Duration, logger)
	deps.Notifier.OnFailure(deps.Metrics.ObserveNotifyFailure)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("postgres", deps.SignalStore != nil),
		slog.Bool("redis", deps.SignalBus != nil),
		slog.Bool("s3", deps.Archiver != nil),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}
