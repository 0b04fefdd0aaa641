package middleware

import (
	"log/slog"

	"github.com/m3rciful/cryptobot/core/logger"
	tghelpers "github.com/m3rciful/cryptobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Admitter is the per-user limiter consulted by RateLimitMiddleware.
type Admitter interface {
	Admit(userID int64) bool
}

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Limiter Admitter
	// Exclude lists update kinds that bypass the limiter. Free-text messages
	// are never limited here; the text resolver consults the limiter itself.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware rejects updates from users that were admitted less than
// one limiter window ago. It shares its limiter with the text resolver, so a
// button press and a following reply count against the same window unless
// callbacks are excluded.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Limiter == nil {
				return next(c)
			}

			kind := UpdateKind(c.Update())
			if kind == KindText {
				return next(c)
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if !opts.Limiter.Admit(user.ID) {
				ctx := tghelpers.BuildContext(c)
				logger.Warn(ctx, logger.CompTelegram, "tg.rate_limit",
					slog.String("status", "rate_limited"),
					slog.String("kind", kind),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
