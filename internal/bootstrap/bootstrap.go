package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-processor/internal/config"
	"github.com/kirillkom/pdf-processor/internal/core/ports"
	"github.com/kirillkom/pdf-processor/internal/core/usecase"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/docapi"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/export"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/pdfinfo"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Executor *resilience.Executor
	// Queue and History are nil when NATS_URL or POSTGRES_DSN are empty.
	Queue   *nats.Queue
	History ports.RunHistoryReader

	ProcessUC ports.DocumentProcessingService
	ExportUC  ports.DocumentExportService

	closeFn func()
}

// New wires the processing stack. observer receives every upstream attempt and may be nil.
func New(ctx context.Context, cfg config.Config, observer resilience.AttemptObserver) (*App, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithObserver(observer)

	client, err := docapi.New(docapi.Options{
		Timeout:  time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second,
		ProxyURL: cfg.UpstreamProxyURL,
		Executor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init document api client: %w", err)
	}

	var closers []func()
	app := &App{Config: cfg, Executor: executor}

	var runs ports.RunRecorder
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		runs = repo
		app.History = repo
		closers = append(closers, func() { _ = db.Close() })
	} else {
		slog.Info("processing_history_disabled", "reason", "POSTGRES_DSN is empty")
	}

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		events = queue
		app.Queue = queue
		closers = append(closers, queue.Close)
	}

	storage, err := localfs.New(cfg.ExportPath)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("init export storage: %w", err)
	}

	app.ProcessUC = usecase.NewProcessDocumentUseCase(
		cfg.Credentials(),
		docapi.NewAuthenticator(client),
		docapi.NewExtractor(client, cfg.Credentials().ProcessURL),
		pdfinfo.NewInspector(),
		runs,
		events,
	)
	app.ExportUC = usecase.NewExportUseCase(storage, export.NewCSVEncoder(), export.NewXLSXEncoder())
	app.closeFn = func() { closeAll(closers) }
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Retry.MaxAttempts = cfg.UpstreamRetryMaxAttempts
	rc.Breaker.Enabled = cfg.UpstreamBreakerEnabled
	return rc
}

func closeAll(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
