package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"blockfall/config"
	"blockfall/terminal"
	"blockfall/tetris"
)

const (
	hideCursor = "\033[2J\033[?25l" // also clear screen
	showCursor = "\033[22;0H\n\r\033[?25h"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	opts := tetris.Options{
		Interval:    cfg.TickInterval,
		FastDivisor: cfg.FastDivisor,
		Debug:       cfg.Debug,
	}
	if cfg.Seed != 0 {
		opts.Randomizer = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}

	t, err := terminal.New(&terminal.Options{
		Logger:     logger,
		FlashDelay: cfg.FlashDelay,
		Game:       opts,
	})
	if err != nil {
		log.Fatalf("unable to start the terminal: %v", err)
	}

	fmt.Print(hideCursor)
	defer fmt.Print(showCursor)
	t.Start()
}

// newLogger writes JSON records to the configured file. The terminal is in
// raw mode, so without a file logs are discarded.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return logger, func() { f.Close() }, nil
}
