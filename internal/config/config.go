// Package config loads the cryptobot configuration: the shared core sections
// plus database, quota, provider, alert watcher and metrics settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/cryptobot/core/config"
	coredatabase "github.com/m3rciful/cryptobot/core/database"
)

// News sources understood by providers.news.source.
const (
	NewsSourceNewsAPI = "newsapi"
	NewsSourceRSS     = "rss"
)

// QuotaConfig holds the prediction tiers and the daily reset boundary.
// A limit of 0 switches predictions off for that tier.
type QuotaConfig struct {
	DailyLimit      int `yaml:"daily_limit" envconfig:"QUOTA_DAILY_LIMIT"`
	AdminDailyLimit int `yaml:"admin_daily_limit" envconfig:"QUOTA_ADMIN_DAILY_LIMIT"`
	// AdminRaiseValue is the count written by the admin "raise" action.
	AdminRaiseValue   int    `yaml:"admin_raise_value" envconfig:"QUOTA_ADMIN_RAISE_VALUE"`
	ResetTimezone     string `yaml:"reset_timezone" envconfig:"QUOTA_RESET_TIMEZONE"`
	ResetRetrySeconds int    `yaml:"reset_retry_seconds" envconfig:"QUOTA_RESET_RETRY_SECONDS"`

	Location *time.Location `yaml:"-" ignored:"true"`
}

// MarketConfig configures the CoinGecko client.
type MarketConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"COINGECKO_BASE_URL"`
	APIKey         string `yaml:"api_key" envconfig:"COINGECKO_API_KEY"`
	Platform       string `yaml:"platform" envconfig:"COINGECKO_PLATFORM"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LLMConfig configures the OpenAI compatible chat client.
type LLMConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL        string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model          string `yaml:"model" envconfig:"OPENAI_MODEL"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// NewsConfig selects the headline source.
type NewsConfig struct {
	Source         string `yaml:"source" envconfig:"NEWS_SOURCE"`
	APIKey         string `yaml:"api_key" envconfig:"NEWSAPI_KEY"`
	BaseURL        string `yaml:"base_url"`
	Query          string `yaml:"query"`
	FeedURL        string `yaml:"feed_url" envconfig:"NEWS_FEED_URL"`
	Limit          int    `yaml:"limit"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ProvidersConfig groups the external collaborators.
type ProvidersConfig struct {
	Market MarketConfig `yaml:"market"`
	LLM    LLMConfig    `yaml:"llm"`
	News   NewsConfig   `yaml:"news"`
}

// AlertsConfig drives the price alert watcher. A negative interval disables it.
type AlertsConfig struct {
	PollSeconds int `yaml:"poll_seconds" envconfig:"ALERTS_POLL_SECONDS"`
}

// MetricsConfig configures the ops listener. An empty address disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full cryptobot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Quota     QuotaConfig         `yaml:"quota"`
	Providers ProvidersConfig     `yaml:"providers"`
	Alerts    AlertsConfig        `yaml:"alerts"`
	Metrics   MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the embedded core section to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Defaults applied by Load and Normalize.
const (
	DefaultDailyLimit        = 10
	DefaultAdminDailyLimit   = 40
	DefaultAdminRaiseValue   = 40
	DefaultResetTimezone     = "UTC"
	DefaultResetRetrySeconds = 60
	DefaultAlertPollSeconds  = 300

	DefaultCoinGeckoURL   = "https://api.coingecko.com/api/v3"
	DefaultPlatform       = "ethereum"
	DefaultLLMModel       = "gpt-4"
	DefaultLLMMaxTokens   = 150
	DefaultNewsAPIURL     = "https://newsapi.org/v2"
	DefaultNewsQuery      = "cryptocurrency"
	DefaultHeadlineLimit  = 5
	defaultTimeoutSeconds = 15
)

// DefaultQuota returns the tiers used when the file leaves them out.
func DefaultQuota() QuotaConfig {
	return QuotaConfig{
		DailyLimit:      DefaultDailyLimit,
		AdminDailyLimit: DefaultAdminDailyLimit,
		AdminRaiseValue: DefaultAdminRaiseValue,
	}
}

// Load reads the YAML file, overlays environment variables and validates the result.
// Quota limits are prefilled so an explicit 0 in the file survives.
func Load(path string) (*Config, error) {
	cfg := Config{Quota: DefaultQuota()}
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if err := c.Quota.normalize(); err != nil {
		return err
	}
	if err := c.Providers.normalize(); err != nil {
		return err
	}
	if c.Alerts.PollSeconds == 0 {
		c.Alerts.PollSeconds = DefaultAlertPollSeconds
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
	return nil
}

func (q *QuotaConfig) normalize() error {
	if q.DailyLimit < 0 || q.AdminDailyLimit < 0 || q.AdminRaiseValue < 0 {
		return fmt.Errorf("quota limits must be >= 0")
	}
	if q.ResetRetrySeconds <= 0 {
		q.ResetRetrySeconds = DefaultResetRetrySeconds
	}
	q.ResetTimezone = strings.TrimSpace(q.ResetTimezone)
	if q.ResetTimezone == "" {
		q.ResetTimezone = DefaultResetTimezone
	}
	loc, err := time.LoadLocation(q.ResetTimezone)
	if err != nil {
		return fmt.Errorf("invalid quota.reset_timezone %q: %w", q.ResetTimezone, err)
	}
	q.Location = loc
	return nil
}

func (p *ProvidersConfig) normalize() error {
	m := &p.Market
	if m.BaseURL == "" {
		m.BaseURL = DefaultCoinGeckoURL
	}
	if m.Platform == "" {
		m.Platform = DefaultPlatform
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = defaultTimeoutSeconds
	}

	l := &p.LLM
	if l.Model == "" {
		l.Model = DefaultLLMModel
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = DefaultLLMMaxTokens
	}
	if l.TimeoutSeconds <= 0 {
		l.TimeoutSeconds = 2 * defaultTimeoutSeconds
	}

	n := &p.News
	n.Source = strings.ToLower(strings.TrimSpace(n.Source))
	if n.Source == "" {
		n.Source = NewsSourceNewsAPI
	}
	if n.Limit <= 0 {
		n.Limit = DefaultHeadlineLimit
	}
	if n.TimeoutSeconds <= 0 {
		n.TimeoutSeconds = defaultTimeoutSeconds
	}
	switch n.Source {
	case NewsSourceNewsAPI:
		if n.BaseURL == "" {
			n.BaseURL = DefaultNewsAPIURL
		}
		if n.Query == "" {
			n.Query = DefaultNewsQuery
		}
	case NewsSourceRSS:
		if strings.TrimSpace(n.FeedURL) == "" {
			return fmt.Errorf("providers.news.feed_url is required when source is %q", NewsSourceRSS)
		}
	default:
		return fmt.Errorf("invalid providers.news.source %q; allowed: newsapi, rss", n.Source)
	}
	return nil
}

// Seconds converts a positive second count into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
