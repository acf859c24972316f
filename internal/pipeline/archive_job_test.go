package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	days     []time.Time
	files    map[string]string
	tradeErr error
}

func (f *fakeArchiver) ArchiveSignals(_ context.Context, day time.Time) (int64, error) {
	f.days = append(f.days, day)
	return 3, nil
}

func (f *fakeArchiver) ArchiveTrades(_ context.Context, day time.Time) (int64, error) {
	f.days = append(f.days, day)
	return 1, f.tradeErr
}

func (f *fakeArchiver) ArchiveFile(_ context.Context, localPath, key string) error {
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[key] = localPath
	return nil
}

type staticPaths struct{ signals, trades string }

func (s staticPaths) Paths() (string, string) { return s.signals, s.trades }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestArchiveJobRun(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	arch := &fakeArchiver{}
	job := NewArchiveJob(arch, staticPaths{"data/signals.csv", "data/trades.csv"}, quietLogger())

	require.NoError(t, job.Run(context.Background(), day))
	assert.Equal(t, []time.Time{day, day}, arch.days)
	assert.Equal(t, map[string]string{
		"journal/2026-03-01/signals.csv": "data/signals.csv",
		"journal/2026-03-01/trades.csv":  "data/trades.csv",
	}, arch.files)
}

func TestArchiveJobRunContinuesAfterFailure(t *testing.T) {
	arch := &fakeArchiver{tradeErr: errors.New("s3 down")}
	job := NewArchiveJob(arch, staticPaths{signals: "data/signals.csv"}, quietLogger())

	err := job.Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 down")
	assert.Len(t, arch.files, 1)
}

func TestCronNext(t *testing.T) {
	after := time.Date(2026, 3, 1, 0, 9, 30, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{"10 0 * * *", time.Date(2026, 3, 1, 0, 10, 0, 0, time.UTC)},
		{"5 0 * * *", time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 1, 0, 15, 0, 0, time.UTC)},
		{"0 3 * * 1-5", time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)}, // Sunday -> Monday
		{"0 0 1 4 *", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, err := c.next(after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCronRejects(t *testing.T) {
	for _, bad := range []string{"", "* * * *", "60 * * * *", "a * * * *", "*/0 * * * *", "5-1 * * * *"} {
		_, err := parseCron(bad)
		assert.Error(t, err, bad)
	}
}
