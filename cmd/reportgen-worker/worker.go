package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/reportgen/pkg/cmd"
	"github.com/dukex/reportgen/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

type Worker struct {
	services     *cmd.Services
	syncInterval time.Duration
	logger       *slog.Logger
}

func NewWorker(services *cmd.Services, syncInterval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		services:     services,
		syncInterval: syncInterval,
		logger:       logger.With("module", "worker"),
	}
}

// Start consumes pipeline events and keeps the template cache warm until
// SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := w.services.Orchestrator.Register(w.services.Bus)
	if err != nil {
		return err
	}

	err = w.services.Bus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	syncJob, err := scheduler.New(w.services.Registry, w.syncInterval, w.logger)
	if err != nil {
		return err
	}

	// a failed warm-up is retried by the schedule
	_, _ = syncJob.RunOnce(ctx)

	err = syncJob.Start(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	w.logger.Info("Shutting down worker...")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return syncJob.Stop(stopCtx)
}
