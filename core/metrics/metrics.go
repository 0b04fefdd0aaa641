// Package metrics exposes bot counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the write side used by handlers, the engine and background jobs.
type Recorder interface {
	RecordUpdate(kind string)
	RecordRateLimited()
	RecordPrediction(outcome string)
	RecordCheckin(outcome string)
	RecordDailyReset(status string)
	RecordAlertFired()
	RecordSend(action, status string)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	reg prometheus.Registerer

	updates     *prometheus.CounterVec
	rateLimited prometheus.Counter
	predictions *prometheus.CounterVec
	checkins    *prometheus.CounterVec
	resets      *prometheus.CounterVec
	alertsFired prometheus.Counter
	sends       *prometheus.CounterVec
}

// NewCollector creates the collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_updates_total",
			Help: "Inbound Telegram updates by kind.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptobot_rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_predictions_total",
			Help: "Consumed predictions by outcome of the market lookup.",
		}, []string{"outcome"}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_checkins_total",
			Help: "Daily check-in attempts by outcome.",
		}, []string{"outcome"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_daily_resets_total",
			Help: "Quota resets by status.",
		}, []string{"status"}),
		alertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptobot_alerts_fired_total",
			Help: "Price alerts that crossed their threshold and were delivered.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_telegram_sends_total",
			Help: "Outbound Telegram calls by action and final status.",
		}, []string{"action", "status"}),
	}
	reg.MustRegister(c.updates, c.rateLimited, c.predictions, c.checkins, c.resets, c.alertsFired, c.sends)
	return c
}

// TrackGauge registers a gauge whose value is read from fn at scrape time.
func (c *Collector) TrackGauge(name, help string, fn func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, func() float64 { return float64(fn()) }))
}

// RecordUpdate counts an inbound update.
func (c *Collector) RecordUpdate(kind string) { c.updates.WithLabelValues(kind).Inc() }

// RecordRateLimited counts a rejected request.
func (c *Collector) RecordRateLimited() { c.rateLimited.Inc() }

// RecordPrediction counts a consumed prediction.
func (c *Collector) RecordPrediction(outcome string) { c.predictions.WithLabelValues(outcome).Inc() }

// RecordCheckin counts a check-in attempt.
func (c *Collector) RecordCheckin(outcome string) { c.checkins.WithLabelValues(outcome).Inc() }

// RecordDailyReset counts a quota reset run.
func (c *Collector) RecordDailyReset(status string) { c.resets.WithLabelValues(status).Inc() }

// RecordAlertFired counts a delivered price alert.
func (c *Collector) RecordAlertFired() { c.alertsFired.Inc() }

// RecordSend counts a finished outbound job.
func (c *Collector) RecordSend(action, status string) {
	c.sends.WithLabelValues(action, status).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordUpdate(string)       {}
func (Nop) RecordRateLimited()        {}
func (Nop) RecordPrediction(string)   {}
func (Nop) RecordCheckin(string)      {}
func (Nop) RecordDailyReset(string)   {}
func (Nop) RecordAlertFired()         {}
func (Nop) RecordSend(string, string) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
