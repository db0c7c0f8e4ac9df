package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pagesum/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Failed to load config",
			"error", err)

		return 1
	}

	// Config validation has already checked the level.
	level, _ := cfg.SlogLevel()

	// Logs go to stderr so summaries on stdout stay pipeable.
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = newCLIApp(cfg, log).RunContext(ctx, os.Args); err != nil {
		log.ErrorContext(ctx, "Command failed",
			"error", err,
			"uptimeSeconds", time.Since(start).Seconds())

		return 1
	}

	log.DebugContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return 0
}
