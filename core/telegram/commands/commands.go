// Package commands describes slash commands and renders them for /help.
package commands

import (
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and help metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Args is the argument hint printed after the name, e.g. "<text>".
	Args      string
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Line renders the command as one help entry.
func (c Command) Line(name string) string {
	var b strings.Builder
	b.WriteString(name)
	if c.Args != "" {
		b.WriteByte(' ')
		b.WriteString(c.Args)
	}
	if c.Description != "" {
		b.WriteString(" - ")
		b.WriteString(c.Description)
	}
	return b.String()
}

// Help lists the public commands sorted by name below intro.
// Hidden and admin-only commands are left out.
func Help(intro string, cmds map[string]Command) string {
	names := make([]string, 0, len(cmds))
	for name, c := range cmds {
		if c.Hidden || c.AdminOnly {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names)+1)
	if intro = strings.TrimSpace(intro); intro != "" {
		lines = append(lines, intro)
	}
	for _, name := range names {
		lines = append(lines, cmds[name].Line(name))
	}
	return strings.Join(lines, "\n")
}
