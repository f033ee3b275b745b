// Package config содержит логику чтения конфигурации сервиса переводов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса переводов.
type Config struct {
	RunAddress     string  `env:"RUN_ADDRESS"`
	DatabaseURI    string  `env:"DATABASE_URI"`
	RedisAddress   string  `env:"REDIS_ADDRESS"`
	MailAPIAddress string  `env:"MAIL_API_ADDRESS"`
	AuthSecret     string  `env:"AUTH_SECRET"`
	PasswordSalt   string  `env:"PASSWORD_SALT" envDefault:"venmo-salt"`
	HashIterations int     `env:"HASH_ITERATIONS" envDefault:"100000"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress
	envMailAddress := cfg.MailAPIAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage when empty")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for the notification queue")
	flag.StringVar(&cfg.MailAPIAddress, "m", "", "mail relay address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing session cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envMailAddress != "" {
		cfg.MailAPIAddress = envMailAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.HashIterations <= 0 {
		return nil, fmt.Errorf("hash iterations must be positive, got %d", cfg.HashIterations)
	}
	if cfg.PasswordSalt == "" {
		return nil, errors.New("password salt must not be empty")
	}

	return cfg, nil
}
