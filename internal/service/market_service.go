package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/strategy"
)

// MarketLister lists the open up/down markets of a series.
type MarketLister interface {
	SeriesMarkets(ctx context.Context, seriesID string) ([]domain.Market, error)
}

// PriceQuoter quotes an outcome token.
type PriceQuoter interface {
	Price(ctx context.Context, tokenID, side string) (float64, error)
}

// MarketServiceConfig selects which series market is tradeable.
type MarketServiceConfig struct {
	SeriesID        string
	IntervalMinutes int
	MinMinutesLeft  float64
	MaxMinutesLeft  float64
}

// MarketService resolves the up/down market of the current interval. The
// result is cached per interval when a MarketCache is configured.
type MarketService struct {
	cfg    MarketServiceConfig
	lister MarketLister
	quoter PriceQuoter        // optional
	cache  domain.MarketCache // optional
	logger *slog.Logger
}

// NewMarketService creates a MarketService. quoter and cache may be nil.
func NewMarketService(
	cfg MarketServiceConfig,
	lister MarketLister,
	quoter PriceQuoter,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 15
	}
	return &MarketService{
		cfg:    cfg,
		lister: lister,
		quoter: quoter,
		cache:  cache,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// Current returns the market whose remaining time at now lies within
// [MinMinutesLeft, MaxMinutesLeft], with live up/down prices. It returns
// domain.ErrNoMarket when none qualifies.
func (s *MarketService) Current(ctx context.Context, now time.Time) (*domain.Market, error) {
	interval := strategy.IntervalStart(now, s.cfg.IntervalMinutes)

	if s.cache != nil {
		m, err := s.cache.GetCurrent(ctx, interval)
		switch {
		case err == nil && s.tradeable(m, now):
			s.refreshPrices(ctx, &m)
			return &m, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "market cache read failed, querying gamma",
				slog.String("error", err.Error()),
			)
		}
	}

	markets, err := s.lister.SeriesMarkets(ctx, s.cfg.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("market_service: list series %s: %w", s.cfg.SeriesID, err)
	}
	var candidates []domain.Market
	for _, m := range markets {
		if s.tradeable(m, now) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("market_service: %d markets listed, none with %.0f-%.0f minutes left: %w",
			len(markets), s.cfg.MinMinutesLeft, s.cfg.MaxMinutesLeft, domain.ErrNoMarket)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].EndTime.Before(candidates[j].EndTime) })
	m := candidates[0]
	s.refreshPrices(ctx, &m)

	if s.cache != nil {
		if err := s.cache.SetCurrent(ctx, interval, m, m.EndTime.Sub(now)); err != nil {
			s.logger.WarnContext(ctx, "market cache write failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", m.ID),
		slog.String("question", m.Question),
		slog.Float64("minutes_left", m.MinutesLeft(now)),
		slog.Float64("up_price", m.Prices[domain.OutcomeUp]),
		slog.Float64("down_price", m.Prices[domain.OutcomeDown]),
	)
	return &m, nil
}

func (s *MarketService) tradeable(m domain.Market, now time.Time) bool {
	left := m.MinutesLeft(now)
	if left < s.cfg.MinMinutesLeft {
		return false
	}
	return s.cfg.MaxMinutesLeft <= 0 || left <= s.cfg.MaxMinutesLeft
}

// refreshPrices replaces the listed outcome prices with CLOB buy quotes.
// A failed quote keeps the listed price.
func (s *MarketService) refreshPrices(ctx context.Context, m *domain.Market) {
	if s.quoter == nil {
		return
	}
	for i, token := range m.TokenIDs {
		p, err := s.quoter.Price(ctx, token, "BUY")
		if err != nil {
			s.logger.WarnContext(ctx, "clob quote failed, keeping listed price",
				slog.String("token_id", token),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.Prices[i] = p
	}
	m.UpdatedAt = time.Now().UTC()
}
