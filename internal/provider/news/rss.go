package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/mmcdole/gofeed"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/model"
)

const maxFeedBytes = 4 << 20

// RSSOptions configures an RSS source.
type RSSOptions struct {
	FeedURL string
	Limit   int
	Timeout time.Duration
	// HTTP overrides the SSRF guarded client, for tests.
	HTTP *http.Client
}

// RSS reads headlines from an RSS or Atom feed.
type RSS struct {
	url    string
	limit  int
	client *http.Client
	parser *gofeed.Parser
}

// NewRSS returns a feed source. Without an explicit client, requests go through
// safeurl so a configured feed cannot reach private or loopback addresses.
func NewRSS(opts RSSOptions) *RSS {
	client := opts.HTTP
	if client == nil {
		client = SafeClient(opts.Timeout)
	}
	return &RSS{
		url:    opts.FeedURL,
		limit:  opts.Limit,
		client: client,
		parser: gofeed.NewParser(),
	}
}

// SafeClient builds an HTTP client restricted to public http(s) hosts on ports 80 and 443.
func SafeClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

// Headlines returns up to limit feed items in feed order.
func (r *RSS) Headlines(ctx context.Context) ([]model.Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("rss: build request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("rss: read body: %w", err)
	}
	feed, err := r.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("rss: parse: %w", err)
	}

	headlines := collect(r.limit, func(yield func(string, string) bool) {
		for _, item := range feed.Items {
			if item == nil {
				continue
			}
			if !yield(item.Title, item.Description) {
				return
			}
		}
	})
	logger.Debug(ctx, logger.CompNews, "fetch",
		slog.String("source", "rss"),
		slog.Int("count", len(headlines)),
		slog.Duration("duration", logger.Took(start)),
	)
	if len(headlines) == 0 {
		return nil, ErrNoHeadlines
	}
	return headlines, nil
}
