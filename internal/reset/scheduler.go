// Package reset zeroes every user's prediction count at each local midnight.
package reset

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/core/metrics"
)

// Resetter is the quota store operation the scheduler drives.
type Resetter interface {
	ResetAll(ctx context.Context) (int64, error)
}

// Options configures a Scheduler. Now and After default to the wall clock.
type Options struct {
	Store    Resetter
	Location *time.Location
	// RetryDelay is the wait before retrying a failed reset.
	RetryDelay time.Duration
	Metrics    metrics.Recorder

	Now   func() time.Time
	After func(d time.Duration) <-chan time.Time
}

// Scheduler runs the daily reset loop.
type Scheduler struct {
	store Resetter
	loc   *time.Location
	retry time.Duration
	rec   metrics.Recorder
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New returns a scheduler. A nil Location means UTC.
func New(opts Options) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, errors.New("reset: store is required")
	}
	s := &Scheduler{
		store: opts.Store,
		loc:   opts.Location,
		retry: opts.RetryDelay,
		rec:   opts.Metrics,
		now:   opts.Now,
		after: opts.After,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.retry <= 0 {
		s.retry = time.Minute
	}
	if s.rec == nil {
		s.rec = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}
	return s, nil
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// Run waits for each midnight in the configured zone and resets all quotas.
// A failed reset is retried after the retry delay rather than at the next
// midnight. Run returns nil once ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	pending := false
	for {
		var wait time.Duration
		if pending {
			wait = s.retry
		} else {
			now := s.now()
			next := NextMidnight(now, s.loc)
			wait = next.Sub(now)
			logger.Debug(ctx, logger.CompReset, "wait",
				slog.Time("next_run", next), slog.Duration("duration", logger.RoundMS(wait)))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(wait):
		}

		pending = !s.RunOnce(ctx)
	}
}

// RunOnce performs a single reset and reports whether it succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	start := time.Now()

	rows, err := s.store.ResetAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.rec.RecordDailyReset("retry")
		logger.Error(ctx, logger.CompReset, "reset",
			slog.String("status", "retry"),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return false
	}
	s.rec.RecordDailyReset("ok")
	logger.Info(ctx, logger.CompReset, "reset",
		slog.String("status", "ok"),
		slog.Int64("rows", rows),
		slog.Duration("duration", logger.Took(start)),
	)
	return true
}
