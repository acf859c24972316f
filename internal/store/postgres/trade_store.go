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

// TradeStore implements domain.TradeStore: one row per execution and one per
// settlement.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `SELECT id, ts, interval_ts, signal, confidence, direction, size_usd,
	entry_price, token_id, order_id, paper_mode, balance_after, pnl, outcome, reasons
	FROM trades`

// Insert appends rec.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	reasons, err := json.Marshal(nonNil(rec.Reasons))
	if err != nil {
		return fmt.Errorf("postgres: marshal trade reasons: %w", err)
	}
	const query = `
		INSERT INTO trades (
			ts, interval_ts, signal, confidence, direction, size_usd, entry_price,
			token_id, order_id, paper_mode, balance_after, pnl, outcome, reasons
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.pool.Exec(ctx, query,
		rec.Time, rec.Interval, string(rec.Decision), string(rec.Confidence), string(rec.Direction),
		rec.SizeUSD, rec.EntryPrice, rec.TokenID, rec.OrderID, rec.Paper, rec.BalanceAfter,
		rec.PnL, rec.Outcome, reasons,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", rec.OrderID, err)
	}
	return nil
}

// ListRecent returns trade rows newest first.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(tradeSelectCols, "ts", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	return collectTrades(rows)
}

// ListBefore returns up to limit rows older than before, newest first.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, tradeSelectCols+` WHERE ts < $1 ORDER BY ts DESC LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectTrades(rows)
}

func collectTrades(rows pgx.Rows) ([]domain.TradeRecord, error) {
	defer rows.Close()
	var out []domain.TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trades rows: %w", err)
	}
	return out, nil
}

func scanTrade(row rowScanner) (domain.TradeRecord, error) {
	var (
		rec                             domain.TradeRecord
		decision, confidence, direction string
		reasons                         []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Time, &rec.Interval, &decision, &confidence, &direction,
		&rec.SizeUSD, &rec.EntryPrice, &rec.TokenID, &rec.OrderID, &rec.Paper,
		&rec.BalanceAfter, &rec.PnL, &rec.Outcome, &reasons,
	)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	rec.Decision = domain.Decision(decision)
	rec.Confidence = domain.Confidence(confidence)
	rec.Direction = domain.Direction(direction)
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &rec.Reasons); err != nil {
			return domain.TradeRecord{}, fmt.Errorf("unmarshal reasons: %w", err)
		}
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
