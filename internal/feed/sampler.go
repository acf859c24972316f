package feed

import (
	"context"
	"log/slog"
	"time"
)

// SampleFunc fetches and records one price sample.
type SampleFunc func(ctx context.Context) error

// Sampler polls the price supplier at a fixed interval. Failed samples are
// logged by the supplier and skipped; the history keeps its prior points.
type Sampler struct {
	interval time.Duration
	sample   SampleFunc
	logger   *slog.Logger
}

// NewSampler creates a Sampler.
func NewSampler(interval time.Duration, sample SampleFunc, logger *slog.Logger) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		interval: interval,
		sample:   sample,
		logger:   logger.With(slog.String("component", "sampler")),
	}
}

// Run samples immediately and then every interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sampler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("sampler stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0
	for {
		if err := s.sample(ctx); err != nil {
			failures++
			if failures == 1 || failures%12 == 0 {
				s.logger.WarnContext(ctx, "price sampling failing",
					slog.Int("consecutive_failures", failures),
					slog.String("error", err.Error()),
				)
			}
		} else if failures > 0 {
			s.logger.InfoContext(ctx, "price sampling recovered", slog.Int("after_failures", failures))
			failures = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
