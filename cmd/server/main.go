// Package main runs the papergen generation scheduler: it recovers the
// persisted task list, dispatches generation work to the configured
// backend, and serves a health endpoint until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/platform/logger"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("papergen: %v", err)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadAppConfig loads the configuration and logs a summary of it.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"persistence", cfg.Persistence.Driver,
		"provider", cfg.LLM.Provider,
		"max_concurrent", cfg.Task.MaxConcurrent)
	if cfg.Database.URL != "" {
		slog.Debug("database configuration", "url_present", true)
	}
	return cfg, nil
}
