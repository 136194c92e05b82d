package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pbs-retrieval/internal/config"
	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/repository/postgres"
)

// Archiver copies retrieval events published on NATS into the Postgres
// query log. Writes are idempotent on the event id, so it can run next to
// an API that also writes to Postgres directly.
type Archiver struct {
	queue    *nats.Queue
	recorder ports.RetrievalRecorder
	logger   *slog.Logger
	closeFn  func()
}

func NewArchiver(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := postgres.OpenDB(config.NormalizeDatabaseURL(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewQueryLogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure query log schema: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: app.executor(),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &Archiver{
		queue:    queue,
		recorder: repo,
		logger:   logger,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// Run consumes events until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver_subscribed", "subject", a.queue.Subject())
	return a.queue.SubscribeRetrievals(ctx, func(handlerCtx context.Context, data []byte) error {
		return archiveEvent(handlerCtx, a.recorder, data)
	})
}

func (a *Archiver) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func archiveEvent(ctx context.Context, recorder ports.RetrievalRecorder, data []byte) error {
	var entry domain.QueryLog
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("decode retrieval event: %w", err)
	}
	if entry.ID == "" {
		return fmt.Errorf("retrieval event without id")
	}
	return recorder.Record(ctx, entry)
}
