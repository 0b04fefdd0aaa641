// Package engine turns button presses and free-text replies into quota,
// alert and portfolio operations. It owns no transport: callers feed it user
// ids and strings and render the returned OutboundMessage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/core/metrics"
	"github.com/m3rciful/cryptobot/core/telegram/state"
	"github.com/m3rciful/cryptobot/internal/model"
)

// Action identifies a button. The value doubles as the callback Unique.
type Action string

// Menu and prompt actions.
const (
	ActionDailyCheckin        Action = "daily_checkin"
	ActionDailyNews           Action = "daily_crypto_news"
	ActionPriceAlert          Action = "price_alert"
	ActionCryptoTips          Action = "crypto_tips"
	ActionPrediction          Action = "ai_prediction"
	ActionPortfolio           Action = "my_portfolio"
	ActionAdminPanel          Action = "admin_panel"
	ActionResetPredictions    Action = "reset_daily_predictions"
	ActionSetAdminPredictions Action = "set_admin_predictions"
	ActionHome                Action = "home"
	ActionAddAlert            Action = "add_price_alert"
	ActionRemoveAlert         Action = "remove_price_alert"
	ActionAddPortfolio        Action = "add_to_portfolio"
	ActionRemovePortfolio     Action = "remove_from_portfolio"
)

// Actions lists every action the dispatcher understands.
func Actions() []Action {
	return []Action{
		ActionDailyCheckin, ActionDailyNews, ActionPriceAlert, ActionCryptoTips,
		ActionPrediction, ActionPortfolio, ActionAdminPanel, ActionResetPredictions,
		ActionSetAdminPredictions, ActionHome, ActionAddAlert, ActionRemoveAlert,
		ActionAddPortfolio, ActionRemovePortfolio,
	}
}

// Awaiting-input slots. At most one is open per user.
const (
	SlotPrediction      state.State = "awaiting_prediction"
	SlotPortfolioAdd    state.State = "awaiting_portfolio_add"
	SlotPortfolioRemove state.State = "awaiting_portfolio_remove"
	SlotAlertAdd        state.State = "awaiting_alert_add"
	SlotAlertRemove     state.State = "awaiting_alert_remove"
)

// Button is one inline keyboard button.
type Button struct {
	Label  string
	Action Action
}

// OutboundMessage is the reply to render. An empty Text means nothing is sent.
type OutboundMessage struct {
	Text    string
	Buttons [][]Button
}

// Empty reports whether there is nothing to send.
func (m OutboundMessage) Empty() bool { return m.Text == "" }

var (
	// ErrTransient marks store failures where the user was told to try again.
	ErrTransient = errors.New("transient failure")
	// ErrUnknownAction is returned for actions outside Actions().
	ErrUnknownAction = errors.New("unknown action")
)

func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// QuotaStore persists prediction counts and check-ins.
type QuotaStore interface {
	EnsureUser(ctx context.Context, userID int64) error
	GetQuota(ctx context.Context, userID int64) (model.Quota, error)
	Checkin(ctx context.Context, userID int64, today time.Time) (bool, error)
	Increment(ctx context.Context, userID int64, today time.Time) (int, error)
	SetCount(ctx context.Context, userID int64, n int) error
	ResetAll(ctx context.Context) (int64, error)
}

// AlertStore persists price alerts and portfolio membership.
type AlertStore interface {
	AddAlert(ctx context.Context, userID int64, ref string, price decimal.Decimal) (int64, error)
	ListUserAlerts(ctx context.Context, userID int64) ([]model.PriceAlert, error)
	DeactivateUserAlert(ctx context.Context, userID, id int64) (bool, error)
	AddPortfolioEntry(ctx context.Context, userID int64, ref string) (bool, error)
	RemovePortfolioEntry(ctx context.Context, userID int64, ref string) error
	ListPortfolio(ctx context.Context, userID int64) ([]string, error)
}

// SuggestionStore records user feedback.
type SuggestionStore interface {
	AddSuggestion(ctx context.Context, userID int64, body string, day time.Time) error
}

// Market resolves contract references to market data.
type Market interface {
	Lookup(ctx context.Context, ref string) (model.Snapshot, error)
	History(ctx context.Context, ref string, from, to time.Time) ([]model.PricePoint, error)
}

// Predictor produces the prediction text. It never fails: problems come back as text.
type Predictor interface {
	Predict(ctx context.Context, snap model.Snapshot) string
}

// Headliner fetches recent crypto headlines.
type Headliner interface {
	Headlines(ctx context.Context) ([]model.Headline, error)
}

// Summarizer condenses headlines into a short digest.
type Summarizer interface {
	Summarize(ctx context.Context, headlines []model.Headline) (string, error)
}

// Admitter is the per-user rate limiter applied to free text.
type Admitter interface {
	Admit(userID int64) bool
}

// Options wires the engine.
type Options struct {
	Quota       QuotaStore
	Alerts      AlertStore
	Suggestions SuggestionStore
	Slots       state.Manager
	Limiter     Admitter

	Market     Market
	Predictor  Predictor
	News       Headliner
	Summarizer Summarizer

	Metrics metrics.Recorder

	AdminID         int64
	DailyLimit      int
	AdminDailyLimit int
	AdminRaiseValue int
	// Location defines the calendar day used for check-ins and prediction dates.
	Location *time.Location
	Now      func() time.Time
}

// Engine is safe for concurrent use by many update goroutines.
type Engine struct {
	opts Options
}

// New validates opts and returns an engine.
func New(opts Options) (*Engine, error) {
	if opts.Quota == nil || opts.Alerts == nil || opts.Slots == nil || opts.Limiter == nil {
		return nil, errors.New("engine: quota, alerts, slots and limiter are required")
	}
	if opts.Market == nil || opts.Predictor == nil {
		return nil, errors.New("engine: market and predictor are required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}, nil
}

// IsAdmin reports whether userID is the configured administrator.
func (e *Engine) IsAdmin(userID int64) bool {
	return e.opts.AdminID != 0 && userID == e.opts.AdminID
}

func (e *Engine) capFor(userID int64) int {
	if e.IsAdmin(userID) {
		return e.opts.AdminDailyLimit
	}
	return e.opts.DailyLimit
}

func (e *Engine) now() time.Time {
	return e.opts.Now().In(e.opts.Location)
}

func remaining(limit, count int) int {
	return max(limit-count, 0)
}
