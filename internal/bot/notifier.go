package bot

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/cryptobot/core/telegram/helpers"
)

// ErrBotNotStarted is returned for pushes attempted before the bot is running.
var ErrBotNotStarted = errors.New("bot: not started")

// notify pushes a message outside of an update. The alert watcher treats an
// error as "not delivered" and keeps the alert active.
func (a *App) notify(ctx context.Context, userID int64, text string) error {
	b := a.bot.Load()
	if b == nil {
		return ErrBotNotStarted
	}
	return tghelpers.SendTo(ctx, b, &tele.User{ID: userID}, text, nil)
}
