package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docqa/internal/app"
	"docqa/internal/cli"
	"docqa/internal/config"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var a *app.App
	loader := func(ctx context.Context) (*cli.Services, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		// CLI output goes to stdout, logs to stderr
		logger := app.NewLogger(cfg, os.Stderr)
		logger.Debug("Logging configured", "level", cfg.LogLevel.String())
		slog.SetDefault(logger)

		a, err = app.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &cli.Services{
			Documents:         a.Documents,
			Engine:            a.Engine,
			AllowedExtensions: a.Documents.AllowedExtensions(),
			Serve: func(ctx context.Context) error {
				return a.Serve(ctx, version)
			},
		}, nil
	}

	err := cli.Execute(ctx, version, loader)
	if a != nil {
		_ = a.Close()
	}
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
