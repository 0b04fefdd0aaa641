// Package llm wraps an OpenAI compatible chat API for price predictions and
// news digests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/cryptobot/core/logger"
	"github.com/m3rciful/cryptobot/internal/model"
)

const (
	systemPrompt     = "You are a helpful assistant."
	textPredictError = "Error generating prediction. Please try again later."
)

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("llm: empty reply")

// Options configures a Client.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	HTTP      *http.Client
}

// Client implements the engine's Predictor and Summarizer.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

// New returns a chat client.
func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTP != nil {
		cfg.HTTPClient = opts.HTTP
	}
	c := &Client{
		api:       openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
	}
	if c.model == "" {
		c.model = openai.GPT4
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 150
	}
	return c
}

// Predict asks the model for the future performance of the snapshot's coin.
// Failures are reported as text.
func (c *Client) Predict(ctx context.Context, snap model.Snapshot) string {
	out, err := c.complete(ctx, "predict",
		"Based on the following data, predict the future performance of the cryptocurrency:\n"+coinInfo(snap))
	if err != nil {
		return textPredictError
	}
	return out
}

// Summarize condenses headlines into a short digest.
func (c *Client) Summarize(ctx context.Context, headlines []model.Headline) (string, error) {
	if len(headlines) == 0 {
		return "", errors.New("llm: no headlines to summarize")
	}
	parts := make([]string, 0, len(headlines))
	for _, h := range headlines {
		parts = append(parts, strings.TrimSpace(h.Title+" "+h.Description))
	}
	return c.complete(ctx, "summarize", "Summarize this news: "+strings.Join(parts, " "))
}

func coinInfo(s model.Snapshot) string {
	var b strings.Builder
	if s.Name != "" {
		fmt.Fprintf(&b, "Coin: %s (%s)\n", s.Name, s.Symbol)
	}
	fmt.Fprintf(&b, "Current Price: $%s\n", s.PriceUSD.String())
	fmt.Fprintf(&b, "Market Cap: $%s\n", s.MarketCapUSD.String())
	fmt.Fprintf(&b, "Total Volume: $%s\n", s.VolumeUSD.String())
	fmt.Fprintf(&b, "Price Change Percentage 24H: %s\n", s.PriceChange24h.String())
	fmt.Fprintf(&b, "Market Cap Change Percentage 24H: %s\n", s.MarketCapChange24h.String())
	return b.String()
}

func (c *Client) complete(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		logger.Warn(ctx, logger.CompLLM, op,
			slog.String("model", c.model),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return "", fmt.Errorf("llm %s: %w", op, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		logger.Warn(ctx, logger.CompLLM, op, slog.String("model", c.model), logger.Err(ErrEmptyReply))
		return "", ErrEmptyReply
	}
	logger.Debug(ctx, logger.CompLLM, op,
		slog.String("model", c.model),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", logger.Took(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
