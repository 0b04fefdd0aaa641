// Package news fetches crypto headlines from NewsAPI or an RSS feed.
package news

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/m3rciful/cryptobot/internal/model"
)

// ErrNoHeadlines is returned when a source answered with nothing usable.
var ErrNoHeadlines = errors.New("news: no headlines")

// Source returns the most recent headlines.
type Source interface {
	Headlines(ctx context.Context) ([]model.Headline, error)
}

var strict = bluemonday.StrictPolicy()

// clean strips markup and collapses whitespace. Feed text arrives HTML escaped
// so entities are decoded after sanitizing.
func clean(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func collect(limit int, items func(yield func(title, desc string) bool)) []model.Headline {
	var out []model.Headline
	items(func(title, desc string) bool {
		title = clean(title)
		if title == "" {
			return true
		}
		out = append(out, model.Headline{Title: title, Description: clean(desc)})
		return limit <= 0 || len(out) < limit
	})
	return out
}
