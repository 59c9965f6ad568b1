package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docqa/internal/app"
	"docqa/internal/config"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions about uploaded PDF, text, markdown and Word documents.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: docqa API
//   description: |
//     Retrieval-augmented question answering over uploaded documents.
//     Upload documents, then ask questions answered from their content.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

var version = "1.0.0"

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(app.NewLogger(cfg, os.Stdout))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()

	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := a.Serve(ctx, version); err != nil {
		slog.Error("API server stopped", "error", err)
		os.Exit(1)
	}
}
