// Package scheduler periodically refreshes the template index and asset cache.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/robfig/cron/v3"
)

// Syncer is the part of the template registry the scheduler drives.
type Syncer interface {
	SyncIndex(ctx context.Context, force bool) (*models.Index, error)
	SyncAllAssets(ctx context.Context, force bool) (int, error)
}

type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func New(syncer Syncer, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}

	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger.With("module", "template_sync", "interval", interval.String()),
	}, nil
}

// Start schedules the sync job. Runs never overlap and a panicking run does
// not stop the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	logger := cronLogger{logger: s.logger}

	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	_, err := c.AddFunc("@every "+s.interval.String(), func() {
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule template sync: %w", err)
	}

	s.logger.InfoContext(ctx, "Starting template sync schedule")

	c.Start()
	s.cron = c

	return nil
}

// RunOnce refreshes the index and then every template's assets. Errors are
// logged and returned; the schedule keeps running either way.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	_, err := s.syncer.SyncIndex(ctx, false)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled index sync failed", "error", err)

		return 0, err
	}

	synced, err := s.syncer.SyncAllAssets(ctx, false)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled asset sync failed", "synced", synced, "error", err)

		return synced, err
	}

	s.logger.InfoContext(ctx, "Scheduled template sync completed", "synced", synced)

	return synced, nil
}

// Stop halts the schedule and waits for a running job, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping template sync schedule")

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
