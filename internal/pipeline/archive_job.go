// Package pipeline runs the background jobs that move journal data to cold
// storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// JournalFiles reports the local CSV journal paths.
type JournalFiles interface {
	Paths() (signals, trades string)
}

// ArchiveJob copies the previous UTC day's signals, trades and CSV journal
// files to cold storage on a cron schedule.
type ArchiveJob struct {
	archiver domain.Archiver
	journal  JournalFiles // optional
	logger   *slog.Logger
}

// NewArchiveJob creates an ArchiveJob. journal may be nil when the CSV
// journal is not kept.
func NewArchiveJob(archiver domain.Archiver, journal JournalFiles, logger *slog.Logger) *ArchiveJob {
	return &ArchiveJob{
		archiver: archiver,
		journal:  journal,
		logger:   logger.With(slog.String("component", "archive_job")),
	}
}

// Run archives the UTC day containing day. Every step is attempted; the
// failures are joined.
func (j *ArchiveJob) Run(ctx context.Context, day time.Time) error {
	day = day.UTC()
	j.logger.InfoContext(ctx, "starting archive run", slog.String("day", day.Format(time.DateOnly)))

	var errs []error
	signals, err := j.archiver.ArchiveSignals(ctx, day)
	if err != nil {
		errs = append(errs, fmt.Errorf("archiving signals for %s: %w", day.Format(time.DateOnly), err))
	}
	trades, err := j.archiver.ArchiveTrades(ctx, day)
	if err != nil {
		errs = append(errs, fmt.Errorf("archiving trades for %s: %w", day.Format(time.DateOnly), err))
	}

	files := 0
	if j.journal != nil {
		sigPath, tradePath := j.journal.Paths()
		for _, p := range []string{sigPath, tradePath} {
			if p == "" {
				continue
			}
			if err := j.archiver.ArchiveFile(ctx, p, journalKey(day, p)); err != nil {
				errs = append(errs, fmt.Errorf("archiving %s: %w", filepath.Base(p), err))
				continue
			}
			files++
		}
	}

	j.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("signals_archived", signals),
		slog.Int64("trades_archived", trades),
		slog.Int("files_archived", files),
		slog.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}

// RunCron runs the job on a 5-field cron schedule (UTC) until ctx is
// cancelled. Each trigger archives the day before the trigger time.
//
// Example: "10 0 * * *" runs at 00:10 every day.
func (j *ArchiveJob) RunCron(ctx context.Context, cronExpr string) error {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	j.logger.InfoContext(ctx, "archive cron started", slog.String("cron", cronExpr))

	for {
		next, err := cron.next(time.Now().UTC())
		if err != nil {
			return err
		}
		wait := time.Until(next)
		j.logger.DebugContext(ctx, "archive job waiting",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("archive cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := j.Run(ctx, next.AddDate(0, 0, -1)); err != nil {
				j.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// journalKey is journal/YYYY-MM-DD/<file name>.
func journalKey(day time.Time, path string) string {
	return fmt.Sprintf("journal/%s/%s", day.UTC().Format(time.DateOnly), filepath.Base(path))
}

// cronField matches one position of a cron expression.
type cronField struct {
	wildcard bool
	values   map[int]bool
}

func (f cronField) matches(val int) bool {
	return f.wildcard || f.values[val]
}

// parseCronField parses "*", "5", "1,15", "1-5" and "*/15" forms within
// [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid cron step %q", part)
			}
			step = n
			part = base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return cronField{}, fmt.Errorf("invalid cron range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron field value %q: %w", part, err)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return cronField{}, fmt.Errorf("cron value %q out of range [%d,%d]", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			values[v] = true
		}
	}
	return cronField{values: values}, nil
}

type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses "minute hour day-of-month month day-of-week".
func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return parsedCron{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}
	return parsedCron{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// next returns the first matching minute strictly after after. The search
// stops one year ahead.
func (c parsedCron) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}

