package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// SignalStore implements domain.SignalStore: one row per decision point.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `SELECT id, ts, signal, confidence, position_size, price, rsi,
	vwap_deviation_pct, momentum_pct, trend, data_points, buy_votes, sell_votes,
	entry_window_open, interval_minutes, hint_direction, hint_confidence, hint_source, reasons
	FROM signals`

// Insert stores sig. Re-inserting the same id is a no-op.
func (s *SignalStore) Insert(ctx context.Context, sig domain.Signal) error {
	reasons, err := json.Marshal(nonNil(sig.Reasons))
	if err != nil {
		return fmt.Errorf("postgres: marshal signal reasons: %w", err)
	}
	var hintDir, hintConf, hintSrc *string
	if h := sig.Hint; h != nil {
		d, c, src := string(h.Direction), string(h.Confidence), h.Source
		hintDir, hintConf, hintSrc = &d, &c, &src
	}

	const query = `
		INSERT INTO signals (
			id, ts, signal, confidence, position_size, price, rsi,
			vwap_deviation_pct, momentum_pct, trend, data_points, buy_votes, sell_votes,
			entry_window_open, interval_minutes, hint_direction, hint_confidence, hint_source, reasons
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING`
	ind := sig.Indicators
	_, err = s.pool.Exec(ctx, query,
		sig.ID, sig.Time, string(sig.Decision), string(sig.Confidence), sig.PositionSize,
		ind.CurrentPrice, ind.RSI, ind.VWAPDeviationPct, ind.MomentumPct, string(ind.Trend),
		ind.SampleCount, sig.BuyVotes, sig.SellVotes, sig.EntryWindowOpen, sig.IntervalMinutes,
		hintDir, hintConf, hintSrc, reasons,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", sig.ID, err)
	}
	return nil
}

// ListRecent returns signals newest first.
func (s *SignalStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Signal, error) {
	query, args := listQuery(signalSelectCols, "ts", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	return collectSignals(rows)
}

// ListBefore returns up to limit signals older than before, newest first.
// It is used to page through the archive.
func (s *SignalStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx, signalSelectCols+` WHERE ts < $1 ORDER BY ts DESC LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectSignals(rows)
}

func collectSignals(rows pgx.Rows) ([]domain.Signal, error) {
	defer rows.Close()
	var out []domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: signals rows: %w", err)
	}
	return out, nil
}

func scanSignal(row rowScanner) (domain.Signal, error) {
	var (
		sig                         domain.Signal
		decision, confidence, trend string
		hintDir, hintConf, hintSrc  *string
		reasons                     []byte
	)
	err := row.Scan(
		&sig.ID, &sig.Time, &decision, &confidence, &sig.PositionSize,
		&sig.Indicators.CurrentPrice, &sig.Indicators.RSI, &sig.Indicators.VWAPDeviationPct,
		&sig.Indicators.MomentumPct, &trend, &sig.Indicators.SampleCount,
		&sig.BuyVotes, &sig.SellVotes, &sig.EntryWindowOpen, &sig.IntervalMinutes,
		&hintDir, &hintConf, &hintSrc, &reasons,
	)
	if err != nil {
		return domain.Signal{}, err
	}
	sig.Decision = domain.Decision(decision)
	sig.Confidence = domain.Confidence(confidence)
	sig.Indicators.Trend = domain.Trend(trend)
	sig.Indicators.Time = sig.Time
	if hintDir != nil {
		sig.Hint = &domain.DirectionalHint{Direction: domain.Direction(*hintDir)}
		if hintConf != nil {
			sig.Hint.Confidence = domain.Confidence(*hintConf)
		}
		if hintSrc != nil {
			sig.Hint.Source = *hintSrc
		}
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &sig.Reasons); err != nil {
			return domain.Signal{}, fmt.Errorf("unmarshal reasons: %w", err)
		}
	}
	return sig, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Compile-time interface check.
var _ domain.SignalStore = (*SignalStore)(nil)
