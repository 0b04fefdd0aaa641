// Package ratelimit enforces a minimum spacing between admitted requests per user.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/cryptobot/core/logger"
)

type userLimiter struct {
	limiter   *rate.Limiter
	lastAdmit time.Time
}

// Limiter admits at most one request per window for each user. The first request
// of a user is always admitted; a rejected request leaves the user's state untouched.
type Limiter struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	users map[int64]*userLimiter
}

// New builds a Limiter. A non-positive window disables limiting.
func New(window time.Duration) *Limiter {
	return &Limiter{
		window: window,
		now:    time.Now,
		users:  make(map[int64]*userLimiter),
	}
}

// Window returns the configured spacing between admitted requests.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Admit reports whether a request from userID may proceed now.
func (l *Limiter) Admit(userID int64) bool {
	return l.AdmitAt(userID, l.now())
}

// AdmitAt is Admit evaluated at the given instant.
func (l *Limiter) AdmitAt(userID int64, at time.Time) bool {
	if l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ul, ok := l.users[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rate.Every(l.window), 1)}
		l.users[userID] = ul
	}
	if !ul.limiter.AllowN(at, 1) {
		return false
	}
	ul.lastAdmit = at
	return true
}

// Len returns the number of tracked users.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// Prune forgets users whose last admitted request is at least one window old.
// Their bucket is full again, so a fresh limiter behaves identically.
func (l *Limiter) Prune(at time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, ul := range l.users {
		if at.Sub(ul.lastAdmit) >= l.window {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}

// Run prunes idle users every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || l.window <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := l.Prune(l.now()); removed > 0 {
				logger.Debug(ctx, logger.CompLimiter, "prune",
					slog.Int("rows", removed),
					slog.Int("count", l.Len()),
				)
			}
		}
	}
}
