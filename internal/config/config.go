package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Provider        string        `env:"PROVIDER"         envDefault:"gemini"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL"     envDefault:"gemini-2.0-flash"`
	GeminiBaseURL   string        `env:"GEMINI_BASE_URL"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIModel     string        `env:"OPENAI_MODEL"     envDefault:"gpt-5-mini"`
	DefaultLanguage string        `env:"DEFAULT_LANGUAGE" envDefault:"English"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"60s"`
	HTTPAddr        string        `env:"HTTP_ADDR"        envDefault:":8080"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"`
	APIToken        string        `env:"API_TOKEN"`
	OptionsURL      string        `env:"OPTIONS_URL"`
	TelegramToken   string        `env:"TELEGRAM_TOKEN"`
	AllowedUsers    []int64       `env:"ALLOWED_USERS"`
	DBPath          string        `env:"DB_PATH"          envDefault:"db.sqlite"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}

	return nil
}

// APIKey is the server-side key of the selected provider.
func (c Config) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}
