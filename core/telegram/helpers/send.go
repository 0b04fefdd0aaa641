package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompSender, "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				logger.Err(err),
			)
			return run()
		}
		return err
	}
	return nil
}

func sendOptions(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: markup, DisableWebPagePreview: true}
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := sendOptions(markup)
	return enqueue(BuildContext(c), "send.text", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// EditOrSendText replaces the message behind a button press, or sends a new
// message when the update carries nothing to edit. Re-rendering an unchanged
// message is not an error.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := sendOptions(markup)
	return enqueue(BuildContext(c), "edit_or_send.text", "editMessageText", func() error {
		if err := c.EditOrSend(text, opts); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
			return err
		}
		return nil
	})
}

// SendTo delivers text to a recipient outside an update, as background jobs do.
func SendTo(ctx context.Context, bot *tele.Bot, to tele.Recipient, text string, markup *tele.ReplyMarkup) error {
	if bot == nil {
		return errors.New("telegram: nil bot")
	}
	opts := sendOptions(markup)
	return enqueue(ctx, "send.push", "sendMessage", func() error {
		_, err := bot.Send(to, text, opts)
		return err
	})
}
