// Package bot wires the cryptobot engine, storage, providers and background
// jobs into the shared Telegram runtime.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cryptobot/core/bootstrap"
	"github.com/m3rciful/cryptobot/core/cmd"
	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/core/metrics"
	"github.com/m3rciful/cryptobot/core/netutil"
	"github.com/m3rciful/cryptobot/core/ops"
	"github.com/m3rciful/cryptobot/core/ratelimit"
	"github.com/m3rciful/cryptobot/core/telegram/state"
	"github.com/m3rciful/cryptobot/internal/alerts"
	"github.com/m3rciful/cryptobot/internal/config"
	"github.com/m3rciful/cryptobot/internal/engine"
	"github.com/m3rciful/cryptobot/internal/provider/llm"
	"github.com/m3rciful/cryptobot/internal/provider/market"
	"github.com/m3rciful/cryptobot/internal/provider/news"
	"github.com/m3rciful/cryptobot/internal/reset"
	"github.com/m3rciful/cryptobot/internal/storage"
	"github.com/m3rciful/cryptobot/migrations"
)

const limiterPruneInterval = time.Minute

// Providers are the external collaborators of the engine.
type Providers struct {
	Market     engine.Market
	Predictor  engine.Predictor
	News       engine.Headliner
	Summarizer engine.Summarizer
}

// App owns every long lived component of the bot process.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	store    *storage.Store
	slots    state.Manager
	limiter  *ratelimit.Limiter
	registry *prometheus.Registry
	metrics  *metrics.Collector

	engine  *engine.Engine
	resets  *reset.Scheduler
	watcher *alerts.Watcher

	// help is rendered from the registered commands.
	help string
	bot  atomic.Pointer[tele.Bot]
}

// Bootstrap prepares logging, the database and every provider from cfg.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{AdminSeeder(cfg.Telegram.AdminID)},
		},
	})
	if err != nil {
		return nil, err
	}

	app, err := New(cfg, res.DB, BuildProviders(cfg))
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	logger.Info(ctx, logger.CompBootstrap, "app",
		slog.String("driver", cfg.Database.Driver),
		slog.String("news_source", cfg.Providers.News.Source),
		slog.Int("daily_limit", cfg.Quota.DailyLimit),
		slog.String("reset_timezone", cfg.Quota.Location.String()),
	)
	return app, nil
}

// BuildProviders creates the HTTP backed market, LLM and news clients.
func BuildProviders(cfg *config.Config) Providers {
	p := cfg.Providers

	marketHTTP := netutil.NewClient(netutil.ClientOptions{
		Timeout: config.Seconds(p.Market.TimeoutSeconds),
		Retries: 2,
	})
	llmHTTP := netutil.NewClient(netutil.ClientOptions{
		Timeout: config.Seconds(p.LLM.TimeoutSeconds),
	})

	chat := llm.New(llm.Options{
		APIKey:    p.LLM.APIKey,
		BaseURL:   p.LLM.BaseURL,
		Model:     p.LLM.Model,
		MaxTokens: p.LLM.MaxTokens,
		HTTP:      llmHTTP,
	})

	var headlines engine.Headliner
	switch p.News.Source {
	case config.NewsSourceRSS:
		headlines = news.NewRSS(news.RSSOptions{
			FeedURL: p.News.FeedURL,
			Limit:   p.News.Limit,
			Timeout: config.Seconds(p.News.TimeoutSeconds),
		})
	default:
		headlines = news.NewNewsAPI(news.NewsAPIOptions{
			BaseURL: p.News.BaseURL,
			APIKey:  p.News.APIKey,
			Query:   p.News.Query,
			Limit:   p.News.Limit,
			HTTP: netutil.NewClient(netutil.ClientOptions{
				Timeout: config.Seconds(p.News.TimeoutSeconds),
			}),
		})
	}

	return Providers{
		Market: market.New(market.Options{
			BaseURL:  p.Market.BaseURL,
			APIKey:   p.Market.APIKey,
			Platform: p.Market.Platform,
			HTTP:     marketHTTP,
		}),
		Predictor:  chat,
		News:       headlines,
		Summarizer: chat,
	}
}

// New assembles the app on an already migrated database.
func New(cfg *config.Config, db *sqlx.DB, p Providers) (*App, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("bot: config and database are required")
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		store:    storage.New(db),
		slots:    state.NewMemoryManager(),
		limiter:  ratelimit.New(config.Seconds(cfg.RateLimit.WindowSeconds)),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.NewCollector(a.registry)
	a.metrics.TrackGauge("cryptobot_open_slots", "Users with an unanswered prompt.", a.slots.Len)
	a.metrics.TrackGauge("cryptobot_limiter_users", "Users tracked by the rate limiter.", a.limiter.Len)

	eng, err := engine.New(engine.Options{
		Quota:           a.store,
		Alerts:          a.store,
		Suggestions:     a.store,
		Slots:           a.slots,
		Limiter:         a.limiter,
		Market:          p.Market,
		Predictor:       p.Predictor,
		News:            p.News,
		Summarizer:      p.Summarizer,
		Metrics:         a.metrics,
		AdminID:         cfg.Telegram.AdminID,
		DailyLimit:      cfg.Quota.DailyLimit,
		AdminDailyLimit: cfg.Quota.AdminDailyLimit,
		AdminRaiseValue: cfg.Quota.AdminRaiseValue,
		Location:        cfg.Quota.Location,
	})
	if err != nil {
		return nil, err
	}
	a.engine = eng

	a.resets, err = reset.New(reset.Options{
		Store:      a.store,
		Location:   cfg.Quota.Location,
		RetryDelay: config.Seconds(cfg.Quota.ResetRetrySeconds),
		Metrics:    a.metrics,
	})
	if err != nil {
		return nil, err
	}

	a.watcher, err = alerts.New(alerts.Options{
		Store:    a.store,
		Pricer:   p.Market,
		Notifier: alerts.NotifierFunc(a.notify),
		Interval: config.Seconds(cfg.Alerts.PollSeconds),
		Metrics:  a.metrics,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Tasks lists the jobs that run next to the bot.
func (a *App) Tasks() []cmd.Task {
	tasks := []cmd.Task{
		{Name: "daily_reset", Run: a.resets.Run},
		{Name: "price_alerts", Run: a.watcher.Run},
		{Name: "limiter_prune", Run: func(ctx context.Context) error {
			return a.limiter.Run(ctx, limiterPruneInterval)
		}},
	}
	if a.cfg.Metrics.Listen != "" {
		srv := ops.NewServer(a.cfg.Metrics.Listen, a.registry, map[string]ops.HealthCheck{
			"database": a.db.PingContext,
		})
		tasks = append(tasks, cmd.Task{Name: "ops", Run: srv.Run})
	}
	return tasks
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}
