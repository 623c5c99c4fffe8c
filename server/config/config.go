// Package config loads the chat server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr             string        `env:"CHAT_ADDR" envDefault:":8080"`
	StaticDir        string        `env:"CHAT_STATIC_DIR" envDefault:"web/static"`
	HistoryLimit     int           `env:"CHAT_HISTORY_LIMIT" envDefault:"100"`
	ReplayLimit      int           `env:"CHAT_REPLAY_LIMIT" envDefault:"20"`
	HandshakeTimeout time.Duration `env:"CHAT_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	LogLevel         string        `env:"CHAT_LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("CHAT_ADDR must not be empty")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must not be negative, got %d", c.HistoryLimit)
	}
	if c.ReplayLimit < 0 || c.ReplayLimit > c.HistoryLimit {
		return fmt.Errorf("CHAT_REPLAY_LIMIT must be between 0 and CHAT_HISTORY_LIMIT (%d), got %d", c.HistoryLimit, c.ReplayLimit)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("CHAT_HANDSHAKE_TIMEOUT must be positive, got %s", c.HandshakeTimeout)
	}
	return nil
}
