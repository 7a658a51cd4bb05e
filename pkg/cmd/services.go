package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/reportgen/pkg/assetstore"
	"github.com/dukex/reportgen/pkg/eventbus"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/dukex/reportgen/pkg/pipeline"
	"github.com/dukex/reportgen/pkg/renderer"
	"github.com/dukex/reportgen/pkg/script"
	"github.com/dukex/reportgen/pkg/templates"
	"github.com/dukex/reportgen/pkg/validation"
)

// Services holds the long-lived collaborators of a reportgen process.
type Services struct {
	Bus          eventbus.EventBus
	Persistence  persistence.Persistence
	Store        assetstore.Store
	Registry     *templates.Registry
	DataSource   *script.DataSource
	Orchestrator *pipeline.Orchestrator

	shutdownTracer func(context.Context) error
	logger         *slog.Logger
}

// NewServices wires the pipeline from cfg. On error everything opened so far is closed.
func NewServices(ctx context.Context, cfg Config, workerID string, logger *slog.Logger) (*Services, error) {
	s := &Services{logger: logger}

	err := s.open(ctx, cfg, workerID)
	if err != nil {
		closeErr := s.Close(ctx)
		if closeErr != nil {
			logger.ErrorContext(ctx, "Failed to release resources", "error", closeErr)
		}

		return nil, err
	}

	return s, nil
}

func (s *Services) open(ctx context.Context, cfg Config, workerID string) error {
	tracer, shutdown, err := NewTracer(ctx, cfg.OtelEnabled, serviceName)
	if err != nil {
		return err
	}

	s.shutdownTracer = shutdown

	s.Bus, err = NewEventBus(cfg.EventBus, cfg.KafkaBrokers, s.logger)
	if err != nil {
		return err
	}

	s.Persistence, err = NewPersistence(ctx, s.logger, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	s.Store, err = NewAssetStore(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}

	source, err := NewSource(cfg)
	if err != nil {
		return err
	}

	s.Registry, err = templates.NewRegistry(s.Store, source, cfg.IndexURL, s.logger)
	if err != nil {
		return err
	}

	s.DataSource, err = script.NewDataSource(cfg.DataSourceDriver, cfg.DataSourceDSN)
	if err != nil {
		return err
	}

	reports := s.Persistence.Reports()

	stages := pipeline.NewStages(pipeline.Dependencies{
		Validator:  validation.NewValidator(s.Registry, s.logger),
		Assets:     s.Registry,
		Scripts:    script.NewEngine(script.Config{}, s.logger),
		DataSource: s.DataSource,
		Renderer: renderer.NewClient(renderer.Config{
			Host:       cfg.GeneratorHost,
			Timeout:    cfg.HTTPTimeout,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.Backoff,
		}, s.logger),
		Reports: reports,
	}, s.logger)

	s.Orchestrator = pipeline.NewOrchestrator(s.Bus, stages, pipeline.NewSink(reports, s.logger), tracer, workerID, s.logger)

	return nil
}

// Close releases every opened resource and reports all failures together.
func (s *Services) Close(ctx context.Context) error {
	var errs []error

	if s.Bus != nil {
		if err := s.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}

	if s.Persistence != nil {
		if err := s.Persistence.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("persistence: %w", err))
		}
	}

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asset store: %w", err))
		}
	}

	if s.DataSource != nil {
		if err := s.DataSource.Close(); err != nil {
			errs = append(errs, fmt.Errorf("data source: %w", err))
		}
	}

	if s.shutdownTracer != nil {
		if err := s.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer: %w", err))
		}
	}

	return errors.Join(errs...)
}
