package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Update kinds used for metrics labels and rate limit exclusions.
const (
	KindCallback    = "callback"
	KindCommand     = "command"
	KindText        = "text"
	KindInlineQuery = "inline_query"
	KindOther       = "other"
)

// UpdateKind classifies an update. Messages starting with "/" are commands.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		if strings.HasPrefix(upd.Message.Text, "/") {
			return KindCommand
		}
		return KindText
	case upd.Query != nil:
		return KindInlineQuery
	}
	return KindOther
}
