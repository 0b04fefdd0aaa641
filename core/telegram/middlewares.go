package telegram

import (
	coreconfig "github.com/m3rciful/cryptobot/core/config"
	"github.com/m3rciful/cryptobot/core/metrics"
	"github.com/m3rciful/cryptobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain for bots. The rate
// limiter is optional; rec may be metrics.Nop.
func DefaultMiddlewares(cfg *coreconfig.Config, limiter middleware.Admitter, rec metrics.Recorder, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if rec != nil {
		mws = append(mws, Middleware{Name: "update_metrics", Use: middleware.UpdateMetricsMiddleware(rec)})
	}

	if cfg != nil && limiter != nil {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			ex[t] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Limiter:   limiter,
				Exclude:   ex,
				OnLimited: onLimited,
			}),
		})
	}

	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
	return mws
}
