package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/indicator"
	"github.com/optimizeforall/polymarket-bot/internal/metrics"
	"github.com/optimizeforall/polymarket-bot/internal/strategy"
)

// PriceServiceConfig controls fetching and history retention.
type PriceServiceConfig struct {
	AssetID      string
	Retries      int
	RetryDelay   time.Duration
	FetchTimeout time.Duration
	// SettleTolerance is the maximum age of the newest sample at or before
	// an interval end for it to be used as the settlement price.
	SettleTolerance time.Duration
	// CacheHistory is the number of samples mirrored to the price cache.
	CacheHistory int
	Indicators   indicator.Config
}

// DefaultPriceServiceConfig returns the standard fetch policy.
func DefaultPriceServiceConfig() PriceServiceConfig {
	return PriceServiceConfig{
		AssetID:         "BTC",
		Retries:         3,
		RetryDelay:      2 * time.Second,
		FetchTimeout:    10 * time.Second,
		SettleTolerance: 2 * time.Minute,
		CacheHistory:    720,
		Indicators:      indicator.DefaultConfig(),
	}
}

// PriceService is the price supplier of the loop. It fetches samples from an
// ordered list of sources, keeps them in a bounded tracker, mirrors them to
// the price cache, and derives indicator snapshots from the trailing window.
type PriceService struct {
	cfg     PriceServiceConfig
	sources []domain.PriceSource
	tracker *strategy.PriceTracker
	cache   domain.PriceCache // optional
	bus     domain.SignalBus  // optional
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewPriceService creates a PriceService. cache, bus and m may be nil.
func NewPriceService(
	cfg PriceServiceConfig,
	sources []domain.PriceSource,
	tracker *strategy.PriceTracker,
	cache domain.PriceCache,
	bus domain.SignalBus,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PriceService {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	return &PriceService{
		cfg:     cfg,
		sources: sources,
		tracker: tracker,
		cache:   cache,
		bus:     bus,
		metrics: m,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "price_service")),
	}
}

// WithClock replaces the time source.
func (s *PriceService) WithClock(now func() time.Time) *PriceService {
	s.now = now
	return s
}

// Fetch returns the first price any source yields, trying sources in order.
// The whole chain is retried Retries times, RetryDelay apart.
func (s *PriceService) Fetch(ctx context.Context) (domain.PricePoint, error) {
	var errs []string
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		for _, src := range s.sources {
			p, err := s.fetchOne(ctx, src)
			if err == nil {
				return p, nil
			}
			errs = append(errs, fmt.Sprintf("%s: %v", src.Name(), err))
			s.logger.DebugContext(ctx, "price source failed",
				slog.String("source", src.Name()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		if attempt == s.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return domain.PricePoint{}, fmt.Errorf("price_service: fetch: %w", ctx.Err())
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	return domain.PricePoint{}, fmt.Errorf("price_service: fetch: %w (%s)",
		domain.ErrAllSourcesFailed, strings.Join(errs, "; "))
}

func (s *PriceService) fetchOne(ctx context.Context, src domain.PriceSource) (domain.PricePoint, error) {
	fctx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}
	start := time.Now()
	p, err := src.Fetch(fctx)
	if err == nil && !(p.Price > 0) {
		err = fmt.Errorf("non-positive price %v", p.Price)
	}
	s.metrics.ObserveFetch(src.Name(), time.Since(start), err)
	if err != nil {
		return domain.PricePoint{}, err
	}
	if p.Source == "" {
		p.Source = src.Name()
	}
	if p.Time.IsZero() {
		p.Time = s.now()
	}
	return p, nil
}

// Sample fetches one price and records it. On failure the history is left
// untouched.
func (s *PriceService) Sample(ctx context.Context) error {
	p, err := s.Fetch(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "price sample skipped, keeping prior history",
			slog.String("error", err.Error()),
		)
		return err
	}
	s.Record(ctx, p)
	return nil
}

// Record appends p to the history and mirrors it to the cache and bus.
// It reports whether the tracker accepted the sample.
func (s *PriceService) Record(ctx context.Context, p domain.PricePoint) bool {
	if !s.tracker.Track(p) {
		s.logger.DebugContext(ctx, "price sample rejected",
			slog.Float64("price", p.Price),
			slog.Time("time", p.Time),
		)
		return false
	}

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, s.cfg.AssetID, p.Price, p.Time); err != nil {
			s.logger.WarnContext(ctx, "price cache set failed", slog.String("error", err.Error()))
		}
		if err := s.cache.AppendHistory(ctx, s.cfg.AssetID, p, s.cfg.CacheHistory); err != nil {
			s.logger.WarnContext(ctx, "price history append failed", slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "price",
			"asset_id":  s.cfg.AssetID,
			"price":     p.Price,
			"volume":    p.Volume,
			"source":    p.Source,
			"timestamp": p.Time.Format(time.RFC3339Nano),
		})
		if err := s.bus.Publish(ctx, "prices", evt); err != nil {
			s.logger.WarnContext(ctx, "publish price event failed", slog.String("error", err.Error()))
		}
	}
	return true
}

// Seed loads points, oldest first, into the tracker without mirroring them.
// It returns the number accepted.
func (s *PriceService) Seed(points []domain.PricePoint) int {
	n := 0
	for _, p := range points {
		if s.tracker.Track(p) {
			n++
		}
	}
	return n
}

// WarmFromCache seeds the tracker from the cached history of the last
// lookback.
func (s *PriceService) WarmFromCache(ctx context.Context, lookback time.Duration) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	points, err := s.cache.History(ctx, s.cfg.AssetID, s.now().Add(-lookback))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("price_service: warm from cache: %w", err)
	}
	n := s.Seed(points)
	s.logger.InfoContext(ctx, "price history warmed from cache", slog.Int("samples", n))
	return n, nil
}

// Indicators computes a snapshot over the samples of the trailing window.
// With fewer than two samples it returns domain.ErrInsufficientData along
// with whatever partial snapshot could be derived.
func (s *PriceService) Indicators(_ context.Context, window time.Duration) (domain.IndicatorSnapshot, error) {
	now := s.now()
	points := s.tracker.Window(now, window)
	snap := indicator.Compute(points, s.cfg.Indicators)
	snap.Time = now
	if len(points) < 2 {
		return snap, fmt.Errorf("price_service: %d samples in window: %w", len(points), domain.ErrInsufficientData)
	}
	snap.Volatility = domain.Float(s.tracker.Volatility(now, window))
	return snap, nil
}

// SettlementPrice returns the newest sample at or before at, provided it is
// no older than SettleTolerance.
func (s *PriceService) SettlementPrice(at time.Time) (float64, bool) {
	history := s.tracker.History()
	for i := len(history) - 1; i >= 0; i-- {
		p := history[i]
		if p.Time.After(at) {
			continue
		}
		if s.cfg.SettleTolerance > 0 && at.Sub(p.Time) > s.cfg.SettleTolerance {
			return 0, false
		}
		return p.Price, true
	}
	return 0, false
}

// Last returns the newest sample.
func (s *PriceService) Last() (domain.PricePoint, bool) {
	return s.tracker.Last()
}

// Samples returns the number of samples held.
func (s *PriceService) Samples() int {
	return s.tracker.Len()
}
