package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime settings for the avatar session gateway.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8000"`
	Env             string        `env:"ENV" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3001"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MetricsNamespace string `env:"APP_METRICS_NAMESPACE" envDefault:"avatar_gateway"`

	HeyGenMode    string        `env:"HEYGEN_MODE" envDefault:"http"`
	HeyGenAPIKey  string        `env:"HEYGEN_API_KEY"`
	HeyGenAPIURL  string        `env:"HEYGEN_API_URL" envDefault:"https://api.heygen.com/v1"`
	HeyGenTimeout time.Duration `env:"HEYGEN_TIMEOUT" envDefault:"30s"`

	DefaultAvatarID string `env:"DEFAULT_AVATAR_ID"`
	DefaultVoiceID  string `env:"DEFAULT_VOICE_ID"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisStream   string `env:"REDIS_STREAM" envDefault:"avatar:session-events"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// BindAddr is the listen address derived from Port.
func (c Config) BindAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MockProvider reports whether the provider calls are answered locally.
func (c Config) MockProvider() bool {
	return strings.EqualFold(strings.TrimSpace(c.HeyGenMode), "mock")
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.HeyGenMode = strings.ToLower(strings.TrimSpace(cfg.HeyGenMode))
	cfg.HeyGenAPIKey = strings.TrimSpace(cfg.HeyGenAPIKey)
	cfg.HeyGenAPIURL = strings.TrimRight(strings.TrimSpace(cfg.HeyGenAPIURL), "/")
	cfg.DefaultAvatarID = strings.TrimSpace(cfg.DefaultAvatarID)
	cfg.DefaultVoiceID = strings.TrimSpace(cfg.DefaultVoiceID)
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)

	switch cfg.HeyGenMode {
	case "http":
		if cfg.HeyGenAPIKey == "" {
			return Config{}, fmt.Errorf("HEYGEN_API_KEY is required when HEYGEN_MODE=http")
		}
		if cfg.HeyGenAPIURL == "" {
			return Config{}, fmt.Errorf("HEYGEN_API_URL must not be empty")
		}
	case "mock":
	default:
		return Config{}, fmt.Errorf("invalid HEYGEN_MODE: %q (expected http|mock)", cfg.HeyGenMode)
	}
	if cfg.DefaultAvatarID == "" {
		return Config{}, fmt.Errorf("DEFAULT_AVATAR_ID is required")
	}
	if cfg.DefaultVoiceID == "" {
		return Config{}, fmt.Errorf("DEFAULT_VOICE_ID is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT must be between 1 and 65535")
	}
	if cfg.HeyGenTimeout <= 0 {
		return Config{}, fmt.Errorf("HEYGEN_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}

	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
