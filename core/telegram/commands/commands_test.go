package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestLine(t *testing.T) {
	assert.Equal(t, "/start - Show the menu", Command{Handler: noop, Description: "Show the menu"}.Line("/start"))
	assert.Equal(t, "/suggest <text> - Send an idea", Command{Handler: noop, Description: "Send an idea", Args: "<text>"}.Line("/suggest"))
	assert.Equal(t, "/ping", Command{}.Line("/ping"))
}

func TestHelpSkipsHiddenAndAdmin(t *testing.T) {
	help := Help("  Use the menu.  ", map[string]Command{
		"/suggest": {Handler: noop, Description: "Send an idea", Args: "<text>"},
		"/start":   {Handler: noop, Description: "Show the menu"},
		"/version": {Handler: noop, Description: "Build", Hidden: true},
		"/raise":   {Handler: noop, Description: "Raise quota", AdminOnly: true},
	})
	assert.Equal(t, "Use the menu.\n/start - Show the menu\n/suggest <text> - Send an idea", help)
}

func TestHelpWithoutIntro(t *testing.T) {
	assert.Equal(t, "/start - Show the menu", Help("", map[string]Command{
		"/start": {Handler: noop, Description: "Show the menu"},
	}))
	assert.Empty(t, Help("", nil))
}
