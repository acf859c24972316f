package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const (
	insertAudit = `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`
	selectAudit = `SELECT id, event, detail, created_at FROM audit_log`
)

// AuditStore is the append-only audit_log table: risk halts, daily resets,
// session start and stop, archive runs.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one entry. detail is stored as JSONB and may be nil.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	var raw []byte
	if detail != nil {
		b, err := sonic.Marshal(detail)
		if err != nil {
			return fmt.Errorf("postgres: audit %s: encode detail: %w", event, err)
		}
		raw = b
	}
	if _, err := s.pool.Exec(ctx, insertAudit, event, raw); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

// List returns entries newest first within opts.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := listQuery(selectAudit, "created_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEntry, error) {
		return scanAuditEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row rowScanner) (domain.AuditEntry, error) {
	var (
		e   domain.AuditEntry
		raw []byte
	)
	if err := row.Scan(&e.ID, &e.Event, &raw, &e.CreatedAt); err != nil {
		return domain.AuditEntry{}, err
	}
	if len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &e.Detail); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("decode detail of %s: %w", e.Event, err)
		}
	}
	return e, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
