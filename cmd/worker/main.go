package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/pdf-processor/internal/bootstrap"
	"github.com/kirillkom/pdf-processor/internal/config"
	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/observability/logging"
	"github.com/kirillkom/pdf-processor/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	if app.Queue == nil {
		slog.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "export_path", cfg.ExportPath)
	err = app.Queue.SubscribeDocumentProcessed(ctx, func(handlerCtx context.Context, event domain.DocumentProcessed) error {
		exportCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
		defer cancel()

		workerMetrics.StartExport(event.ProcessedAt)
		start := time.Now()
		err := app.ExportUC.HandleProcessed(exportCtx, event)
		workerMetrics.FinishExport(time.Since(start), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
