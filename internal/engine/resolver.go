package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/core/telegram/state"
	"github.com/m3rciful/cryptobot/internal/model"
)

// Resolve interprets a free-text message against the user's open slot. The
// slot is consumed whatever the outcome, so a malformed reply never leaves
// the user stuck in a prompt. Text with no open slot yields an empty message.
func (e *Engine) Resolve(ctx context.Context, userID int64, text string) (OutboundMessage, error) {
	if !e.opts.Limiter.Admit(userID) {
		e.opts.Metrics.RecordRateLimited()
		logger.Debug(ctx, logger.CompEngine, "resolve", slog.String("outcome", "rate_limited"))
		return reply(textPleaseWait), nil
	}

	slot := e.opts.Slots.Take(userID)
	if slot == state.StateIdle {
		logger.Debug(ctx, logger.CompEngine, "resolve", slog.String("outcome", "inert"))
		return OutboundMessage{}, nil
	}
	logger.Debug(ctx, logger.CompEngine, "slot.take", slog.String("slot", string(slot)))

	switch slot {
	case SlotPrediction:
		return e.resolvePrediction(ctx, userID, text)
	case SlotPortfolioAdd:
		return e.resolvePortfolioAdd(ctx, userID, text)
	case SlotPortfolioRemove:
		return e.resolvePortfolioRemove(ctx, userID, text)
	case SlotAlertAdd:
		return e.resolveAlertAdd(ctx, userID, text)
	case SlotAlertRemove:
		return e.resolveAlertRemove(ctx, userID, text)
	default:
		logger.Warn(ctx, logger.CompEngine, "slot.unknown", slog.String("slot", string(slot)))
		return OutboundMessage{}, nil
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrCoinNotFound)
}

// validRef trims text and checks the 1..MaxRefLength rune bound.
func validRef(text string) (string, bool) {
	ref := strings.TrimSpace(text)
	n := utf8.RuneCountInString(ref)
	return ref, n > 0 && n <= model.MaxRefLength
}

func (e *Engine) resolvePrediction(ctx context.Context, userID int64, text string) (OutboundMessage, error) {
	body, outcome := e.predict(ctx, text)

	// A prediction is consumed even when the lookup failed.
	n, err := e.opts.Quota.Increment(ctx, userID, e.now())
	if err != nil {
		e.opts.Metrics.RecordPrediction("fail")
		return withHome(textTryAgain), transient("increment predictions", err)
	}
	e.opts.Metrics.RecordPrediction(outcome)
	left := remaining(e.capFor(userID), n)
	logger.Info(ctx, logger.CompEngine, "prediction",
		slog.String("outcome", outcome), slog.Int("remaining", left))
	return withHome(predictionResult(body, left)), nil
}

func (e *Engine) predict(ctx context.Context, text string) (string, string) {
	ref, ok := validRef(text)
	if !ok {
		return textCoinNotFound, "invalid"
	}
	snap, err := e.opts.Market.Lookup(ctx, ref)
	switch {
	case isNotFound(err):
		return textCoinNotFound, "invalid"
	case err != nil:
		logger.Warn(ctx, logger.CompEngine, "prediction.lookup", slog.String("ref", ref), logger.Err(err))
		return textMarketError, "fail"
	}
	return e.opts.Predictor.Predict(ctx, snap), "ok"
}

func (e *Engine) resolvePortfolioAdd(ctx context.Context, userID int64, text string) (OutboundMessage, error) {
	ref, ok := validRef(text)
	if !ok {
		if ref == "" {
			return withHome(textEmptyRef), nil
		}
		return withHome(fmt.Sprintf("Contract address '%s' is too long. Must be at most %d characters.",
			ref, model.MaxRefLength)), nil
	}
	added, err := e.opts.Alerts.AddPortfolioEntry(ctx, userID, ref)
	if err != nil {
		return withHome(textTryAgain), transient("add portfolio entry", err)
	}
	if !added {
		return withHome(fmt.Sprintf("%s is already tracked in your portfolio.", ref)), nil
	}
	return withHome(fmt.Sprintf("Added %s to your portfolio.", ref)), nil
}

func (e *Engine) resolvePortfolioRemove(ctx context.Context, userID int64, text string) (OutboundMessage, error) {
	ref := strings.TrimSpace(text)
	if ref == "" {
		return withHome(textEmptyRef), nil
	}
	if err := e.opts.Alerts.RemovePortfolioEntry(ctx, userID, ref); err != nil {
		return withHome(textTryAgain), transient("remove portfolio entry", err)
	}
	return withHome(fmt.Sprintf("Removed %s from your portfolio.", ref)), nil
}

func parseAlert(text string) (string, decimal.Decimal, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", decimal.Decimal{}, false
	}
	ref := fields[0]
	if utf8.RuneCountInString(ref) > model.MaxRefLength {
		return "", decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(fields[1])
	if err != nil || !price.IsPositive() {
		return "", decimal.Decimal{}, false
	}
	return ref, price, true
}

func (e *Engine) resolveAlertAdd(ctx context.Context, userID int64, text string) (OutboundMessage, error) {
	ref, price, ok := parseAlert(text)
	if !ok {
		logger.Debug(ctx, logger.CompEngine, "alert.add", slog.String("outcome", "invalid"))
		return withHome(textInvalidAlert), nil
	}
	id, err := e.opts.Alerts.AddAlert(ctx, userID, ref, price)
	if err != nil {
		return withHome(textTryAgain), transient("add alert", err)
	}
	logger.Info(ctx, logger.CompEngine, "alert.add", slog.Int64("alert_id", id), slog.String("ref", ref))
	return withHome(fmt.Sprintf("Price alert #%d set for %s at %s.", id, ref, usd(price))), nil
}

func (e *Engine) resolveAlertRemove(ctx context.Context, userID int64, text string) (OutboundMessage, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		return withHome(textInvalidAlertID), nil
	}
	removed, err := e.opts.Alerts.DeactivateUserAlert(ctx, userID, id)
	if err != nil {
		return withHome(textTryAgain), transient("deactivate alert", err)
	}
	if !removed {
		return withHome(fmt.Sprintf("No active price alert with ID %d.", id)), nil
	}
	logger.Info(ctx, logger.CompEngine, "alert.remove", slog.Int64("alert_id", id))
	return withHome(fmt.Sprintf("Price alert with ID %d removed.", id)), nil
}
