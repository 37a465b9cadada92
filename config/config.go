// Package config loads the game settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	TickInterval time.Duration `env:"BLOCKFALL_TICK_INTERVAL" envDefault:"1s"`
	FastDivisor  int           `env:"BLOCKFALL_FAST_DIVISOR" envDefault:"27"`
	// Seed feeds the piece randomizer. Zero picks a time based seed.
	Seed       uint64        `env:"BLOCKFALL_SEED" envDefault:"0"`
	Debug      bool          `env:"BLOCKFALL_DEBUG" envDefault:"false"`
	LogFile    string        `env:"BLOCKFALL_LOG_FILE"`
	LogLevel   slog.Level    `env:"BLOCKFALL_LOG_LEVEL" envDefault:"info"`
	FlashDelay time.Duration `env:"BLOCKFALL_FLASH_DELAY" envDefault:"40ms"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TickInterval < time.Millisecond {
		errs = append(errs, fmt.Errorf("tick interval %v is below 1ms", c.TickInterval))
	}
	if c.FastDivisor < 1 {
		errs = append(errs, fmt.Errorf("fast divisor %d must be at least 1", c.FastDivisor))
	}
	if c.FlashDelay < 0 {
		errs = append(errs, fmt.Errorf("flash delay %v is negative", c.FlashDelay))
	}
	return errors.Join(errs...)
}
