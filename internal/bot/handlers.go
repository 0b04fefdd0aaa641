package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cryptobot/core/buildinfo"
	"github.com/m3rciful/cryptobot/core/logger"
	tg "github.com/m3rciful/cryptobot/core/telegram"
	"github.com/m3rciful/cryptobot/core/telegram/commands"
	tghelpers "github.com/m3rciful/cryptobot/core/telegram/helpers"
	"github.com/m3rciful/cryptobot/core/telegram/keyboard"
	"github.com/m3rciful/cryptobot/core/telegram/router"
	tgsender "github.com/m3rciful/cryptobot/core/telegram/sender"
	"github.com/m3rciful/cryptobot/internal/engine"
)

const (
	textPleaseWait = "Please wait a moment before making another request."
	textAdminOnly  = "This command is available to the administrator only."
	textHelpIntro  = "Use the menu buttons to check in, get AI predictions, manage price alerts and your portfolio."
)

// TelegramRunOptions registers every command, button and text handler.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error { return tghelpers.SendText(c, textAdminOnly, nil) },
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:            core,
		Registry:          reg,
		DispatcherOptions: tgsender.Options{MaxRetries: 2, Metrics: a.metrics},
		Middlewares:       tg.DefaultMiddlewares(core, a.limiter, a.metrics, a.onLimited),
		Routes:            routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.bot.Store(rt.Bot)
			logger.Debug(ctx, logger.CompWire, "bot.attached", slog.Int("callbacks", len(reg.ListCallbacks())))
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			a.bot.Store(nil)
			return nil
		},
	}, nil
}

func (a *App) register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{Handler: a.onStart, Description: "Show the main menu"})
	reg.RegisterCommand("/help", commands.Command{Handler: a.onHelp, Description: "How to use the bot"})
	reg.RegisterCommand("/suggest", commands.Command{Handler: a.onSuggest, Description: "Send us an idea", Args: "<text>"})
	reg.RegisterCommand("/version", commands.Command{Handler: a.onVersion, Description: "Build information", Hidden: true})

	for _, action := range engine.Actions() {
		if err := reg.RegisterCallback(string(action), a.onAction(action)); err != nil {
			return fmt.Errorf("bot: register %s: %w", action, err)
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return a.renderHome(c)
	})
	reg.SetTextFallback(a.onText)
	a.help = commands.Help(textHelpIntro, reg.Commands())
	return nil
}

func (a *App) onStart(c tele.Context) error {
	msg, err := a.engine.Start(tghelpers.BuildContext(c), c.Sender().ID)
	return a.deliver(c, msg, err, false)
}

func (a *App) onHelp(c tele.Context) error {
	return tghelpers.SendText(c, a.help, nil)
}

func (a *App) onSuggest(c tele.Context) error {
	msg, err := a.engine.Suggest(tghelpers.BuildContext(c), c.Sender().ID, c.Message().Payload)
	return a.deliver(c, msg, err, false)
}

func (a *App) onVersion(c tele.Context) error {
	return tghelpers.SendText(c, buildinfo.Summary(), nil)
}

func (a *App) onAction(action engine.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg, err := a.engine.Dispatch(tghelpers.BuildContext(c), c.Sender().ID, action)
		return a.deliver(c, msg, err, true)
	}
}

// renderHome answers stale buttons from an older menu layout.
func (a *App) renderHome(c tele.Context) error {
	return a.render(c, a.engine.Home(c.Sender().ID), true)
}

func (a *App) onText(c tele.Context) error {
	msg, err := a.engine.Resolve(tghelpers.BuildContext(c), c.Sender().ID, c.Text())
	return a.deliver(c, msg, err, false)
}

// onLimited answers updates rejected by the shared rate limit middleware.
func (a *App) onLimited(c tele.Context) error {
	a.metrics.RecordRateLimited()
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textPleaseWait})
	}
	return tghelpers.SendText(c, textPleaseWait, nil)
}

// deliver renders msg even when err is set; transient failures already carry
// a retry text and are only logged.
func (a *App) deliver(c tele.Context, msg engine.OutboundMessage, err error, edit bool) error {
	if err != nil {
		ctx := tghelpers.BuildContext(c)
		if !errors.Is(err, engine.ErrTransient) {
			return err
		}
		logger.Warn(ctx, logger.CompEngine, "transient", slog.String("status", "retry"), logger.Err(err))
	}
	return a.render(c, msg, edit)
}

func (a *App) render(c tele.Context, msg engine.OutboundMessage, edit bool) error {
	if msg.Empty() {
		return nil
	}
	markup := Markup(msg.Buttons)
	if edit {
		return tghelpers.EditOrSendText(c, msg.Text, markup)
	}
	return tghelpers.SendText(c, msg.Text, markup)
}

// Markup converts engine button rows to an inline keyboard. Each button's
// unique id is its action so callbacks route back through the registry.
func Markup(rows [][]engine.Button) *tele.ReplyMarkup {
	inline := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Label, Unique: string(b.Action)})
		}
		inline = append(inline, r)
	}
	return keyboard.InlineButtonsRows(inline...)
}
