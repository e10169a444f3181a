// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env string `env:"ENV" envDefault:"development"`

	Telegram TelegramConfig
	DB       DBConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

type TelegramConfig struct {
	Token string `env:"TELEGRAM_BOT_TOKEN"`
	Debug bool   `env:"BOT_DEBUG" envDefault:"false"`
}

type DBConfig struct {
	Driver      string `env:"DB_DRIVER" envDefault:"sqlite"`
	Path        string `env:"DB_PATH" envDefault:"data/data.db"`
	DatabaseURL string `env:"DATABASE_URL"`
}

type HTTPConfig struct {
	Addr               string   `env:"HTTP_ADDR" envDefault:":8080"`
	CORSOrigins        []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver)
	}
	if c.Telegram.Token == "" && c.HTTP.Addr == "" {
		return errors.New("nothing to run: set TELEGRAM_BOT_TOKEN or HTTP_ADDR")
	}
	if c.HTTP.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
