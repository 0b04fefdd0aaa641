package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/core/telegram/state"
)

// Dispatch handles a button press. The returned message is always safe to
// render; a non-nil error is for logging and wraps ErrTransient when the user
// was asked to retry.
func (e *Engine) Dispatch(ctx context.Context, userID int64, action Action) (OutboundMessage, error) {
	logger.Debug(ctx, logger.CompEngine, "dispatch", slog.String("action", string(action)))

	if err := e.opts.Quota.EnsureUser(ctx, userID); err != nil {
		return withHome(textTryAgain), transient("ensure user", err)
	}

	switch action {
	case ActionHome:
		return e.Home(userID), nil
	case ActionDailyCheckin:
		return e.checkin(ctx, userID)
	case ActionPrediction:
		return e.startPrediction(ctx, userID)
	case ActionPriceAlert:
		return e.alertOverview(ctx, userID)
	case ActionPortfolio:
		return e.portfolioOverview(ctx, userID)
	case ActionCryptoTips:
		return withHome(textTips), nil
	case ActionDailyNews:
		return e.news(ctx), nil
	case ActionAddAlert:
		return e.prompt(ctx, userID, SlotAlertAdd, textPromptAlertAdd), nil
	case ActionRemoveAlert:
		return e.prompt(ctx, userID, SlotAlertRemove, textPromptAlertRemove), nil
	case ActionAddPortfolio:
		return e.prompt(ctx, userID, SlotPortfolioAdd, textPromptPortfolioAdd), nil
	case ActionRemovePortfolio:
		return e.prompt(ctx, userID, SlotPortfolioRemove, textPromptPortfolioRemove), nil
	case ActionAdminPanel, ActionResetPredictions, ActionSetAdminPredictions:
		return e.admin(ctx, userID, action)
	default:
		return OutboundMessage{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Home renders the main menu. The admin also sees the admin panel button.
func (e *Engine) Home(userID int64) OutboundMessage {
	return reply(textWelcome, mainMenu(e.IsAdmin(userID))...)
}

// Start registers the user and shows the main menu.
func (e *Engine) Start(ctx context.Context, userID int64) (OutboundMessage, error) {
	if err := e.opts.Quota.EnsureUser(ctx, userID); err != nil {
		return reply(textTryAgain), transient("ensure user", err)
	}
	return e.Home(userID), nil
}

// Suggest stores free-form feedback left with /suggest.
func (e *Engine) Suggest(ctx context.Context, userID int64, body string) (OutboundMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" || e.opts.Suggestions == nil {
		return reply(textSuggestUsage), nil
	}
	if err := e.opts.Quota.EnsureUser(ctx, userID); err != nil {
		return reply(textTryAgain), transient("ensure user", err)
	}
	if err := e.opts.Suggestions.AddSuggestion(ctx, userID, body, e.now()); err != nil {
		return reply(textTryAgain), transient("add suggestion", err)
	}
	logger.Info(ctx, logger.CompEngine, "suggestion", slog.Int("text_len", len(body)))
	return reply(textSuggestThanks), nil
}

func (e *Engine) prompt(ctx context.Context, userID int64, slot state.State, text string) OutboundMessage {
	e.opts.Slots.Open(userID, slot)
	logger.Debug(ctx, logger.CompEngine, "slot.open", slog.String("slot", string(slot)))
	return withHome(text)
}

func (e *Engine) checkin(ctx context.Context, userID int64) (OutboundMessage, error) {
	today := e.now()
	q, err := e.opts.Quota.GetQuota(ctx, userID)
	if err != nil {
		e.opts.Metrics.RecordCheckin("fail")
		return withHome(textTryAgain), transient("get quota", err)
	}
	if q.CheckedInOn(today) {
		e.opts.Metrics.RecordCheckin("denied")
		return withHome(textAlreadyChecked), nil
	}
	applied, err := e.opts.Quota.Checkin(ctx, userID, today)
	if err != nil {
		e.opts.Metrics.RecordCheckin("fail")
		return withHome(textTryAgain), transient("checkin", err)
	}
	if !applied {
		// a concurrent press won the conditional update
		e.opts.Metrics.RecordCheckin("denied")
		return withHome(textAlreadyChecked), nil
	}
	e.opts.Metrics.RecordCheckin("ok")
	logger.Info(ctx, logger.CompEngine, "checkin", slog.String("outcome", "ok"))
	return withHome(textCheckedIn), nil
}

func (e *Engine) startPrediction(ctx context.Context, userID int64) (OutboundMessage, error) {
	q, err := e.opts.Quota.GetQuota(ctx, userID)
	if err != nil {
		return withHome(textTryAgain), transient("get quota", err)
	}
	limit := e.capFor(userID)
	if q.Count >= limit {
		logger.Debug(ctx, logger.CompEngine, "prediction.blocked",
			slog.String("outcome", "denied"), slog.Int("cap", limit))
		return withHome(limitReached(limit)), nil
	}
	e.opts.Slots.Open(userID, SlotPrediction)
	return withHome(predictionPrompt(remaining(limit, q.Count))), nil
}

func (e *Engine) alertOverview(ctx context.Context, userID int64) (OutboundMessage, error) {
	alerts, err := e.opts.Alerts.ListUserAlerts(ctx, userID)
	if err != nil {
		return withHome(textTryAgain), transient("list alerts", err)
	}
	return reply(alertList(alerts), alertMenu()...), nil
}

func (e *Engine) portfolioOverview(ctx context.Context, userID int64) (OutboundMessage, error) {
	refs, err := e.opts.Alerts.ListPortfolio(ctx, userID)
	if err != nil {
		return withHome(textTryAgain), transient("list portfolio", err)
	}
	if len(refs) == 0 {
		return reply(textPortfolioEmpty, portfolioMenu()...), nil
	}

	var (
		b     strings.Builder
		total decimal.Decimal
	)
	b.WriteString("Your Portfolio:\n")
	for _, ref := range refs {
		snap, err := e.opts.Market.Lookup(ctx, ref)
		switch {
		case isNotFound(err):
			fmt.Fprintf(&b, "- %s: Coin not found\n", ref)
		case err != nil:
			logger.Warn(ctx, logger.CompEngine, "portfolio.lookup", slog.String("ref", ref), logger.Err(err))
			fmt.Fprintf(&b, "- %s: Error fetching data\n", ref)
		default:
			fmt.Fprintf(&b, "- %s: %s\n", ref, usd(snap.PriceUSD))
			total = total.Add(snap.PriceUSD)
		}
	}
	fmt.Fprintf(&b, "\nTotal Portfolio Value: %s\n\n", usd(total))

	to := e.opts.Now()
	from := to.Add(-24 * time.Hour)
	b.WriteString("History of coins in the last 24 hours:\n")
	for _, ref := range refs {
		points, err := e.opts.Market.History(ctx, ref, from, to)
		if err != nil || len(points) == 0 {
			if err != nil && !isNotFound(err) {
				logger.Warn(ctx, logger.CompEngine, "portfolio.history", slog.String("ref", ref), logger.Err(err))
			}
			fmt.Fprintf(&b, "- %s: Error fetching historical data\n", ref)
			continue
		}
		b.WriteString(historyLine(ref, points[0].Price, points[len(points)-1].Price))
	}
	return reply(strings.TrimRight(b.String(), "\n"), portfolioMenu()...), nil
}

func historyLine(ref string, first, last decimal.Decimal) string {
	line := fmt.Sprintf("- %s: %s → %s", ref, usd(first), usd(last))
	if !first.IsZero() {
		pct := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).StringFixed(2)
		line += fmt.Sprintf(" (%s%%)", pct)
	}
	return line + "\n"
}

func (e *Engine) news(ctx context.Context) OutboundMessage {
	if e.opts.News == nil || e.opts.Summarizer == nil {
		return withHome(textNewsUnavailable)
	}
	headlines, err := e.opts.News.Headlines(ctx)
	if err != nil || len(headlines) == 0 {
		if err != nil {
			logger.Warn(ctx, logger.CompEngine, "news.fetch", logger.Err(err))
		}
		return withHome(textNewsUnavailable)
	}
	summary, err := e.opts.Summarizer.Summarize(ctx, headlines)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			logger.Warn(ctx, logger.CompEngine, "news.summarize", logger.Err(err))
		}
		return withHome(textNewsSummaryFail)
	}
	return withHome(strings.TrimSpace(summary))
}

func (e *Engine) admin(ctx context.Context, userID int64, action Action) (OutboundMessage, error) {
	if !e.IsAdmin(userID) {
		logger.Warn(ctx, logger.CompEngine, "admin.denied",
			slog.String("action", string(action)), slog.String("outcome", "denied"))
		return withHome(textAdminOnly), nil
	}
	switch action {
	case ActionResetPredictions:
		rows, err := e.opts.Quota.ResetAll(ctx)
		if err != nil {
			return withHome(textTryAgain), transient("reset predictions", err)
		}
		logger.Info(ctx, logger.CompEngine, "admin.reset", slog.Int64("rows", rows))
		return withHome(textResetDone), nil
	case ActionSetAdminPredictions:
		if err := e.opts.Quota.SetCount(ctx, userID, e.opts.AdminRaiseValue); err != nil {
			return withHome(textTryAgain), transient("set admin predictions", err)
		}
		return withHome(fmt.Sprintf("Admin daily predictions count has been set to %d.", e.opts.AdminRaiseValue)), nil
	default:
		return reply(textAdminPanel, adminMenu(e.opts.AdminRaiseValue)...), nil
	}
}
