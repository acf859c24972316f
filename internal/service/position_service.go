package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// DefaultMaxSettleAttempts is the number of ticks a due position waits for a
// settlement price before it is written off as a loss.
const DefaultMaxSettleAttempts = 3

// PositionService holds the open up/down positions of the session and settles
// them once their interval has ended. Each winning share pays 1 USD.
type PositionService struct {
	mu          sync.Mutex
	open        []domain.Position
	maxAttempts int
	bus         domain.SignalBus // optional
	logger      *slog.Logger
}

// NewPositionService creates a PositionService. bus may be nil.
func NewPositionService(maxAttempts int, bus domain.SignalBus, logger *slog.Logger) *PositionService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSettleAttempts
	}
	return &PositionService{
		maxAttempts: maxAttempts,
		bus:         bus,
		logger:      logger.With(slog.String("component", "position_service")),
	}
}

// Open records a newly filled position.
func (s *PositionService) Open(ctx context.Context, pos domain.Position) {
	pos.Status = domain.PositionStatusOpen
	s.mu.Lock()
	s.open = append(s.open, pos)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("direction", string(pos.Direction)),
		slog.Float64("size_usd", pos.SizeUSD),
		slog.Float64("reference_price", pos.ReferencePrice),
		slog.Time("interval_end", pos.IntervalEnd),
	)
	s.publish(ctx, "position_opened", pos)
}

// Restore reinstates positions saved by a previous session. IDs already held
// are skipped.
func (s *PositionService) Restore(ctx context.Context, positions []domain.Position) int {
	s.mu.Lock()
	added := 0
	for _, p := range positions {
		if p.Status != "" && p.Status != domain.PositionStatusOpen {
			continue
		}
		if slices.ContainsFunc(s.open, func(o domain.Position) bool { return o.ID == p.ID }) {
			continue
		}
		p.Status = domain.PositionStatusOpen
		s.open = append(s.open, p)
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		s.logger.InfoContext(ctx, "positions restored", slog.Int("count", added))
	}
	return added
}

// Committed is the stake tied up in unsettled positions.
func (s *PositionService) Committed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, p := range s.open {
		total += p.SizeUSD
	}
	return total
}

// OpenPositions returns a copy of the unsettled positions.
func (s *PositionService) OpenPositions() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, len(s.open))
	copy(out, s.open)
	return out
}

// HasDue reports whether any open position's interval has ended at now.
func (s *PositionService) HasDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.open {
		if !now.Before(p.IntervalEnd) {
			return true
		}
	}
	return false
}

// SettleDue settles every position whose interval has ended. priceAt returns
// the underlying price at a position's interval end; when it reports false
// the position waits for the next call, and after maxAttempts misses it is
// closed as a total loss. Settled positions are removed and returned.
func (s *PositionService) SettleDue(ctx context.Context, now time.Time, priceAt func(time.Time) (float64, bool)) []domain.Position {
	s.mu.Lock()
	var settled []domain.Position
	remaining := s.open[:0]
	for _, p := range s.open {
		if now.Before(p.IntervalEnd) {
			remaining = append(remaining, p)
			continue
		}
		if price, ok := priceAt(p.IntervalEnd); ok {
			settled = append(settled, Settle(p, price, now))
			continue
		}
		p.SettleAttempts++
		if p.SettleAttempts >= s.maxAttempts {
			settled = append(settled, writeOff(p, now))
			continue
		}
		s.logger.WarnContext(ctx, "settlement price unavailable, retrying next tick",
			slog.String("position_id", p.ID),
			slog.Int("attempt", p.SettleAttempts),
		)
		remaining = append(remaining, p)
	}
	s.open = remaining
	s.mu.Unlock()

	for _, p := range settled {
		s.logger.InfoContext(ctx, "position settled",
			slog.String("position_id", p.ID),
			slog.String("outcome", p.Outcome),
			slog.Float64("pnl", p.RealizedPnL),
		)
		s.publish(ctx, "position_settled", p)
	}
	return settled
}

// Settle resolves an up/down position against the underlying price at
// interval end. Up wins when the exit price is at or above the reference
// price; Down wins when it is below.
func Settle(p domain.Position, exitPrice float64, now time.Time) domain.Position {
	up := exitPrice >= p.ReferencePrice
	won := (p.Direction == domain.DirectionUp && up) || (p.Direction == domain.DirectionDown && !up)

	p.ExitPrice = domain.Float(exitPrice)
	if won {
		p.Outcome = domain.OutcomeWin
		p.RealizedPnL = p.Shares()*1.0 - p.SizeUSD
	} else {
		p.Outcome = domain.OutcomeLoss
		p.RealizedPnL = -p.SizeUSD
	}
	closed := now.UTC()
	p.ClosedAt = &closed
	p.Status = domain.PositionStatusClosed
	return p
}

// Payout returns the USD credited for a settled position.
func Payout(p domain.Position) float64 {
	if p.Outcome != domain.OutcomeWin {
		return 0
	}
	return p.Shares() * 1.0
}

func writeOff(p domain.Position, now time.Time) domain.Position {
	p.Outcome = domain.OutcomeLoss
	p.RealizedPnL = -p.SizeUSD
	closed := now.UTC()
	p.ClosedAt = &closed
	p.Status = domain.PositionStatusClosed
	return p
}

func (s *PositionService) publish(ctx context.Context, event string, p domain.Position) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":       event,
		"position_id": p.ID,
		"market":      p.MarketID,
		"direction":   string(p.Direction),
		"size_usd":    p.SizeUSD,
		"entry_price": p.EntryPrice,
		"outcome":     p.Outcome,
		"pnl":         p.RealizedPnL,
	})
	if err := s.bus.Publish(ctx, "positions", evt); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("position_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
