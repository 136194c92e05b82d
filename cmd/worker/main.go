package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/pbs-retrieval/internal/bootstrap"
	"github.com/kirillkom/pbs-retrieval/internal/config"
	"github.com/kirillkom/pbs-retrieval/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("pbs-retrieval-worker", "error").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(cfg.ServiceName+"-worker", cfg.LogLevel)
	if cfg.NATSURL == "" {
		logger.Error("config_error", "error", "NATS_URL is required for the query log worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiver, err := bootstrap.NewArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer archiver.Close()

	if err := archiver.Run(ctx); err != nil {
		logger.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}
