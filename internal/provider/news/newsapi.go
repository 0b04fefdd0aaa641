package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/model"
)

// NewsAPIOptions configures a NewsAPI source.
type NewsAPIOptions struct {
	BaseURL string
	APIKey  string
	Query   string
	Limit   int
	HTTP    *http.Client
}

// NewsAPI reads the /everything endpoint of newsapi.org.
type NewsAPI struct {
	opts NewsAPIOptions
}

// NewNewsAPI returns a NewsAPI source.
func NewNewsAPI(opts NewsAPIOptions) *NewsAPI {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTP == nil {
		opts.HTTP = http.DefaultClient
	}
	return &NewsAPI{opts: opts}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"articles"`
}

// Headlines returns up to Limit articles for Query, newest first.
func (n *NewsAPI) Headlines(ctx context.Context) ([]model.Headline, error) {
	q := url.Values{}
	q.Set("q", n.opts.Query)
	q.Set("sortBy", "publishedAt")
	if n.opts.Limit > 0 {
		q.Set("pageSize", strconv.Itoa(n.opts.Limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.opts.BaseURL+"/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.opts.APIKey)

	start := time.Now()
	resp, err := n.opts.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer resp.Body.Close()

	var out newsAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 2<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("newsapi: decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %d %s: %s", resp.StatusCode, out.Code, out.Message)
	}

	headlines := collect(n.opts.Limit, func(yield func(string, string) bool) {
		for _, a := range out.Articles {
			if !yield(a.Title, a.Description) {
				return
			}
		}
	})
	logger.Debug(ctx, logger.CompNews, "fetch",
		slog.String("source", "newsapi"),
		slog.Int("count", len(headlines)),
		slog.Duration("duration", logger.Took(start)),
	)
	if len(headlines) == 0 {
		return nil, ErrNoHeadlines
	}
	return headlines, nil
}
