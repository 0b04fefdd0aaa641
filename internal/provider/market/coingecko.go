// Package market fetches contract prices and history from the CoinGecko API.
package market

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

	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/model"
)

// ErrNotFound is returned when CoinGecko does not know the contract.
var ErrNotFound = model.ErrCoinNotFound

const apiKeyHeader = "x-cg-demo-api-key"

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Platform string
	HTTP     *http.Client
}

// Client is a minimal CoinGecko contract client.
type Client struct {
	base     string
	apiKey   string
	platform string
	http     *http.Client
}

// New returns a client. HTTP defaults to http.DefaultClient.
func New(opts Options) *Client {
	c := &Client{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		platform: opts.Platform,
		http:     opts.HTTP,
	}
	if c.platform == "" {
		c.platform = "ethereum"
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c
}

type usdValue struct {
	USD decimal.Decimal `json:"usd"`
}

type contractResponse struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Error      string `json:"error"`
	MarketData struct {
		CurrentPrice                 usdValue        `json:"current_price"`
		MarketCap                    usdValue        `json:"market_cap"`
		TotalVolume                  usdValue        `json:"total_volume"`
		PriceChangePercentage24h     decimal.Decimal `json:"price_change_percentage_24h"`
		MarketCapChangePercentage24h decimal.Decimal `json:"market_cap_change_percentage_24h"`
		LastUpdated                  time.Time       `json:"last_updated"`
	} `json:"market_data"`
}

type chartResponse struct {
	Prices [][2]decimal.Decimal `json:"prices"`
}

// Lookup returns the market snapshot of the contract at ref.
func (c *Client) Lookup(ctx context.Context, ref string) (model.Snapshot, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Snapshot{}, ErrNotFound
	}
	var out contractResponse
	if err := c.get(ctx, c.contractPath(ref), nil, &out); err != nil {
		return model.Snapshot{}, err
	}
	if out.Error != "" || out.ID == "" {
		return model.Snapshot{}, ErrNotFound
	}
	md := out.MarketData
	return model.Snapshot{
		Ref:                ref,
		Name:               out.Name,
		Symbol:             strings.ToUpper(out.Symbol),
		PriceUSD:           md.CurrentPrice.USD,
		MarketCapUSD:       md.MarketCap.USD,
		VolumeUSD:          md.TotalVolume.USD,
		PriceChange24h:     md.PriceChangePercentage24h,
		MarketCapChange24h: md.MarketCapChangePercentage24h,
		UpdatedAt:          md.LastUpdated,
	}, nil
}

// History returns USD price samples for ref between from and to.
func (c *Client) History(ctx context.Context, ref string, from, to time.Time) ([]model.PricePoint, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))

	var out chartResponse
	if err := c.get(ctx, c.contractPath(ref)+"/market_chart/range", q, &out); err != nil {
		return nil, err
	}
	points := make([]model.PricePoint, 0, len(out.Prices))
	for _, p := range out.Prices {
		points = append(points, model.PricePoint{
			At:    time.UnixMilli(p[0].IntPart()).UTC(),
			Price: p[1],
		})
	}
	return points, nil
}

func (c *Client) contractPath(ref string) string {
	return fmt.Sprintf("/coins/%s/contract/%s", url.PathEscape(c.platform), url.PathEscape(strings.ToLower(ref)))
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("coingecko: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, logger.CompMarket, "request", slog.String("path", path), logger.Err(err))
		return fmt.Errorf("coingecko: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug(ctx, logger.CompMarket, "request",
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration("duration", logger.Took(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coingecko: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(dst); err != nil {
		return fmt.Errorf("coingecko: decode: %w", err)
	}
	return nil
}
