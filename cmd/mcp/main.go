package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/pdf-processor/internal/adapters/mcp"
	"github.com/kirillkom/pdf-processor/internal/bootstrap"
	"github.com/kirillkom/pdf-processor/internal/config"
	"github.com/kirillkom/pdf-processor/internal/observability/logging"
)

var version = "dev"

func main() {
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", "info")
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	if err := cfg.Credentials().Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.ProcessUC, cfg.DefaultTestMode, cfg.MaxUploadBytes())
	if err := srv.ServeStdio(version); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
