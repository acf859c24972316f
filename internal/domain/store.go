package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SignalStore persists one row per decision point.
type SignalStore interface {
	Insert(ctx context.Context, sig Signal) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Signal, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Signal, error)
}

// TradeStore persists one row per executed or settled trade.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	ListRecent(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]TradeRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Journal is the append-only record of decisions and trades.
type Journal interface {
	RecordSignal(ctx context.Context, sig Signal) error
	RecordTrade(ctx context.Context, rec TradeRecord) error
}
