package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// SignalSource lists journaled signals in a time range.
type SignalSource interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Signal, error)
}

// TradeSource lists journaled trades in a time range.
type TradeSource interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// ArchiveImpl implements domain.Archiver. A day's rows are serialized to
// JSONL and uploaded to archive/{kind}/YYYY/MM/DD.jsonl; journal files go
// up as-is. Nothing is deleted from the primary store.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	signals SignalSource     // optional
	trades  TradeSource      // optional
	audit   domain.AuditStore // optional
}

// NewArchiver creates an ArchiveImpl. signals, trades and audit may be nil.
func NewArchiver(writer domain.BlobWriter, signals SignalSource, trades TradeSource, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		signals: signals,
		trades:  trades,
		audit:   audit,
	}
}

// ArchiveSignals uploads the signals of the UTC day containing day and
// returns the number archived.
func (a *ArchiveImpl) ArchiveSignals(ctx context.Context, day time.Time) (int64, error) {
	if a.signals == nil {
		return 0, nil
	}
	rows, err := a.signals.ListRecent(ctx, dayRange(day))
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	return archiveRows(ctx, a, "signals", day, rows)
}

// ArchiveTrades uploads the trade rows of the UTC day containing day.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, day time.Time) (int64, error) {
	if a.trades == nil {
		return 0, nil
	}
	rows, err := a.trades.ListRecent(ctx, dayRange(day))
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	return archiveRows(ctx, a, "trades", day, rows)
}

// ArchiveFile uploads a local file to key. Files of at least one multipart
// part go through the upload manager.
func (a *ArchiveImpl) ArchiveFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("s3blob: archive file open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("s3blob: archive file stat %s: %w", localPath, err)
	}

	if info.Size() >= minPartSize {
		err = a.writer.PutMultipart(ctx, key, f, minPartSize)
	} else {
		err = a.writer.Put(ctx, key, f, contentType(localPath))
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive file upload: %w", err)
	}
	a.logAudit(ctx, "archive.file", map[string]any{"path": key, "source": localPath, "bytes": info.Size()})
	return nil
}

func archiveRows[T any](ctx context.Context, a *ArchiveImpl, kind string, day time.Time, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	path := archivePath(kind, day)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	count := int64(len(rows))
	a.logAudit(ctx, "archive."+kind, map[string]any{
		"path":  path,
		"count": count,
		"day":   day.UTC().Format(time.DateOnly),
	})
	return count, nil
}

func (a *ArchiveImpl) logAudit(ctx context.Context, event string, detail map[string]any) {
	if a.audit == nil {
		return
	}
	// The upload already succeeded; a missing audit row is not worth failing it.
	_ = a.audit.Log(ctx, event, detail)
}

func dayRange(day time.Time) domain.ListOpts {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24*time.Hour - time.Nanosecond)
	return domain.ListOpts{Since: &start, Until: &end}
}

// archivePath is archive/{kind}/YYYY/MM/DD.jsonl for the UTC day.
func archivePath(kind string, day time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, day.UTC().Format("2006/01/02"))
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".jsonl":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
