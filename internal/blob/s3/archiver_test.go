package s3blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

type memWriter struct {
	objects map[string]string
	types   map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string]string{}, types: map[string]string{}}
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, ct string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = string(b)
	w.types[path] = ct
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeSignals struct {
	rows []domain.Signal
	opts domain.ListOpts
}

func (f *fakeSignals) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Signal, error) {
	f.opts = opts
	return f.rows, nil
}

type memAudit struct{ events []string }

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveSignals(t *testing.T) {
	day := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	w := newMemWriter()
	sigs := &fakeSignals{rows: []domain.Signal{{ID: "a"}, {ID: "b"}}}
	audit := &memAudit{}
	a := NewArchiver(w, sigs, nil, audit)

	n, err := a.ArchiveSignals(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *sigs.opts.Since)
	assert.True(t, sigs.opts.Until.Before(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))

	body, ok := w.objects["archive/signals/2026/03/01.jsonl"]
	require.True(t, ok)
	assert.Len(t, strings.Split(strings.TrimSpace(body), "\n"), 2)
	assert.Equal(t, []string{"archive.signals"}, audit.events)

	n, err = a.ArchiveTrades(context.Background(), day)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,signal\n"), 0o644))
	w := newMemWriter()

	require.NoError(t, NewArchiver(w, nil, nil, nil).ArchiveFile(context.Background(), path, "journal/2026-03-01/signals.csv"))
	assert.Equal(t, "timestamp,signal\n", w.objects["journal/2026-03-01/signals.csv"])
	assert.Equal(t, "text/csv", w.types["journal/2026-03-01/signals.csv"])

	err := NewArchiver(w, nil, nil, nil).ArchiveFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "x")
	require.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
}
