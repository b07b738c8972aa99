package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Sources overrides the built-in center catalog when set,
	// formatted as "CODE:Name,CODE:Name".
	Sources string `env:"SOURCES"`

	PollInterval         time.Duration `env:"POLL_INTERVAL" default:"5s"`
	MaxConcurrentFetches int           `env:"MAX_CONCURRENT_FETCHES" default:"10"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" default:"30s"`
	FetchRatePerSecond   float64       `env:"FETCH_RATE_PER_SECOND" default:"5"`
	ScrapeBaseURL        string        `env:"SCRAPE_BASE_URL"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	MaxSubscribers    int           `env:"MAX_SUBSCRIBERS" default:"10000"`

	RedisURL         string `env:"REDIS_URL"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SourceCatalog resolves the configured source set, falling back to the
// built-in center catalog when SOURCES is unset.
func (c *Config) SourceCatalog() ([]domain.Source, error) {
	if c.Sources == "" {
		return domain.DefaultSources(), nil
	}
	return domain.ParseSources(c.Sources)
}

func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MaxConcurrentFetches < 1 {
		return fmt.Errorf("MAX_CONCURRENT_FETCHES must be at least 1, got %d", cfg.MaxConcurrentFetches)
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", cfg.FetchTimeout)
	}
	if cfg.FetchRatePerSecond <= 0 {
		return fmt.Errorf("FETCH_RATE_PER_SECOND must be positive, got %v", cfg.FetchRatePerSecond)
	}
	if cfg.MaxSubscribers < 1 {
		return fmt.Errorf("MAX_SUBSCRIBERS must be at least 1, got %d", cfg.MaxSubscribers)
	}

	sources, err := cfg.SourceCatalog()
	if err != nil {
		return fmt.Errorf("SOURCES is malformed: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	return nil
}
