package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"midas/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Reddit        RedditConfig
	Yahoo         YahooConfig
	OpenAI        OpenAIConfig
	Discord       DiscordConfig
	Trading       TradingConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"midas"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedditConfig struct {
	Subreddit   string        `envconfig:"REDDIT_SUBREDDIT" default:"wallstreetbets"`
	UserAgent   string        `envconfig:"REDDIT_USER_AGENT" default:"midas/1.0"`
	CutoffDays  int           `envconfig:"REDDIT_CUTOFF_DAYS" default:"7"`
	PostLimit   int           `envconfig:"REDDIT_POST_LIMIT" default:"1000"`
	HTTPTimeout time.Duration `envconfig:"REDDIT_HTTP_TIMEOUT" default:"30s"`
}

type YahooConfig struct {
	HTTPTimeout time.Duration `envconfig:"YAHOO_HTTP_TIMEOUT" default:"30s"`
}

type OpenAIConfig struct {
	APIKey      string        `envconfig:"OPENAI_API_KEY" required:"true"`
	Model       string        `envconfig:"OPENAI_MODEL" default:"gpt-5"`
	Temperature float64       `envconfig:"OPENAI_TEMPERATURE" default:"1"`
	Timeout     time.Duration `envconfig:"OPENAI_TIMEOUT" default:"5m"`
}

type DiscordConfig struct {
	WebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`
	Timeout    time.Duration `envconfig:"DISCORD_TIMEOUT" default:"15s"`
}

type TradingConfig struct {
	PortfolioName   string  `envconfig:"TRADING_PORTFOLIO_NAME" default:"weekly_trade_bot"`
	InitialCapital  float64 `envconfig:"TRADING_INITIAL_CAPITAL" default:"10000"`
	BenchmarkTicker string  `envconfig:"TRADING_BENCHMARK_TICKER" default:"^GSPC"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
