package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config is the daemon's own configuration, loaded from the environment.
// It is distinct from the host-persisted settings store, which holds the
// learned offsets and feature toggles.
type Config struct {
	HostURL  string `env:"HOST_URL" default:"ws://127.0.0.1:9090/jsonrpc"`
	HTTPPort string `env:"HTTP_PORT" default:"8099"`

	StateFile string `env:"STATE_FILE" default:"offsetpilot.json"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" default:"10s"`
}

// Load reads .env (if present) and the environment into a Config.
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

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.HostURL)
	if err != nil {
		return fmt.Errorf("HOST_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("HOST_URL must use ws:// or wss://, got %q", u.Scheme)
	}

	if cfg.StateFile == "" {
		return fmt.Errorf("STATE_FILE is required")
	}

	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("CONNECT_TIMEOUT must be positive, got %s", cfg.ConnectTimeout)
	}

	return nil
}
