// Package alerts polls market prices and notifies users whose price alert
// threshold was crossed between two consecutive observations.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/core/metrics"
	"github.com/m3rciful/cryptobot/internal/model"
)

// Store is the alert persistence used by the watcher.
type Store interface {
	ListActiveAlerts(ctx context.Context) ([]model.PriceAlert, error)
	DeactivateAlert(ctx context.Context, id int64) (bool, error)
}

// Pricer looks up the current price of a contract.
type Pricer interface {
	Lookup(ctx context.Context, ref string) (model.Snapshot, error)
}

// Notifier delivers a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID int64, text string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

// Options configures a Watcher.
type Options struct {
	Store    Store
	Pricer   Pricer
	Notifier Notifier
	Interval time.Duration
	Metrics  metrics.Recorder
}

// Watcher keeps the last observed price per ref between polls.
type Watcher struct {
	store    Store
	pricer   Pricer
	notifier Notifier
	interval time.Duration
	rec      metrics.Recorder

	mu   sync.Mutex
	last map[string]decimal.Decimal
}

// New returns a watcher. A non-positive interval disables polling.
func New(opts Options) (*Watcher, error) {
	if opts.Store == nil || opts.Pricer == nil || opts.Notifier == nil {
		return nil, errors.New("alerts: store, pricer and notifier are required")
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Watcher{
		store:    opts.Store,
		pricer:   opts.Pricer,
		notifier: opts.Notifier,
		interval: opts.Interval,
		rec:      rec,
		last:     make(map[string]decimal.Decimal),
	}, nil
}

// Crossed reports whether threshold lies on the path from prev to cur.
// Touching the threshold from either side counts; staying on it does not.
func Crossed(prev, cur, threshold decimal.Decimal) bool {
	up := prev.LessThan(threshold) && cur.GreaterThanOrEqual(threshold)
	down := prev.GreaterThan(threshold) && cur.LessThanOrEqual(threshold)
	return up || down
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		logger.Info(ctx, logger.CompWatcher, "disabled", slog.String("status", "skip"))
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one poll and returns the number of alerts fired. The
// first observation of a ref only records its price.
func (w *Watcher) RunOnce(ctx context.Context) int {
	ctx = logger.WithRunID(ctx, uuid.NewString())
	start := time.Now()

	active, err := w.store.ListActiveAlerts(ctx)
	if err != nil {
		logger.Error(ctx, logger.CompWatcher, "poll", slog.String("status", "fail"), logger.Err(err))
		return 0
	}

	byRef := make(map[string][]model.PriceAlert)
	var refs []string
	for _, a := range active {
		if _, seen := byRef[a.Ref]; !seen {
			refs = append(refs, a.Ref)
		}
		byRef[a.Ref] = append(byRef[a.Ref], a)
	}

	fired := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		snap, err := w.pricer.Lookup(ctx, ref)
		if err != nil {
			logger.Warn(ctx, logger.CompWatcher, "lookup",
				slog.String("ref", ref), slog.String("status", logger.Status(err)), logger.Err(err))
			continue
		}
		prev, known := w.observe(ref, snap.PriceUSD)
		if !known {
			continue
		}
		for _, a := range byRef[ref] {
			if !Crossed(prev, snap.PriceUSD, a.Price) {
				continue
			}
			if w.fire(ctx, a, snap.PriceUSD) {
				fired++
			}
		}
	}
	w.forget(byRef)

	if fired > 0 || logger.ShouldSampleDebug(logger.CompWatcher) {
		logger.Debug(ctx, logger.CompWatcher, "poll",
			slog.String("status", "ok"),
			slog.Int("count", len(active)),
			slog.Int("fired", fired),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return fired
}

func (w *Watcher) observe(ref string, price decimal.Decimal) (decimal.Decimal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, ok := w.last[ref]
	w.last[ref] = price
	return prev, ok
}

// forget drops prices for refs that no longer have active alerts.
func (w *Watcher) forget(active map[string][]model.PriceAlert) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ref := range w.last {
		if _, ok := active[ref]; !ok {
			delete(w.last, ref)
		}
	}
}

func (w *Watcher) fire(ctx context.Context, a model.PriceAlert, price decimal.Decimal) bool {
	text := fmt.Sprintf("🔔 Price alert #%d: %s reached $%s (current price $%s).",
		a.ID, a.Ref, a.Price.String(), price.String())
	if err := w.notifier.Notify(ctx, a.UserID, text); err != nil {
		// keep the alert active so the next crossing can retry delivery
		logger.Warn(ctx, logger.CompWatcher, "notify",
			slog.Int64("alert_id", a.ID), slog.String("status", logger.Status(err)), logger.Err(err))
		return false
	}
	if _, err := w.store.DeactivateAlert(ctx, a.ID); err != nil {
		logger.Error(ctx, logger.CompWatcher, "deactivate", slog.Int64("alert_id", a.ID), logger.Err(err))
	}
	w.rec.RecordAlertFired()
	logger.Info(ctx, logger.CompWatcher, "fired",
		slog.Int64("alert_id", a.ID), slog.String("ref", a.Ref))
	return true
}
