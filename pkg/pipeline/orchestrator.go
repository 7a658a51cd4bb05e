// Package pipeline runs report generation as a chain of independently
// delivered stages, routing any stage failure to a single error sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dukex/reportgen/pkg/eventbus"
	"github.com/dukex/reportgen/pkg/events"
	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/otelhelper"
	"github.com/dukex/reportgen/pkg/script"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Orchestrator struct {
	bus      eventbus.EventBus
	stages   []Stage
	sink     *Sink
	tracer   trace.Tracer
	workerID string
	logger   *slog.Logger
}

func NewOrchestrator(
	bus eventbus.EventBus,
	stages []Stage,
	sink *Sink,
	tracer trace.Tracer,
	workerID string,
	logger *slog.Logger,
) *Orchestrator {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Orchestrator{
		bus:      bus,
		stages:   stages,
		sink:     sink,
		tracer:   tracer,
		workerID: workerID,
		logger:   logger.With("module", "pipeline"),
	}
}

// Start hands the first stage of a new report to the bus and returns without waiting.
func (o *Orchestrator) Start(ctx context.Context, templateID string, args map[string]any, reportID string) error {
	if len(o.stages) == 0 {
		return errors.New("pipeline has no stages")
	}

	pc := models.PipelineContext{
		TemplateID: templateID,
		ReportID:   reportID,
		Args:       args,
	}

	o.logger.InfoContext(ctx, "Starting report pipeline", "report_id", reportID, "template_id", templateID)

	return o.publishStage(ctx, o.stages[0].Name, pc)
}

// Register subscribes the stage driver and the error sink to the bus.
func (o *Orchestrator) Register(bus eventbus.EventSubscriber) error {
	err := bus.Handle(events.StageRequestedEvent, func(ctx context.Context, event any) error {
		request, ok := event.(*events.StageRequested)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		return o.HandleStage(ctx, request)
	})
	if err != nil {
		return err
	}

	return bus.Handle(events.StageFailedEvent, func(ctx context.Context, event any) error {
		failed, ok := event.(*events.StageFailed)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		return o.sink.Handle(ctx, failed.Stage, failed.ReportID, failed.Error, failed.Trace)
	})
}

func (o *Orchestrator) stageIndex(name string) int {
	for i, stage := range o.stages {
		if stage.Name == name {
			return i
		}
	}

	return -1
}

// HandleStage runs the requested stage and publishes what comes next: the
// following stage on success, a StageFailed event on error. The returned error
// is reserved for bus failures, which ask for redelivery.
func (o *Orchestrator) HandleStage(ctx context.Context, request *events.StageRequested) error {
	pc := request.Context
	logger := o.logger.With("report_id", pc.ReportID, "template_id", pc.TemplateID, "stage", request.Stage)

	idx := o.stageIndex(request.Stage)
	if idx < 0 {
		return o.fail(ctx, request.Stage, &pc, &StageError{Stage: request.Stage, Err: ErrUnknownStage}, "")
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline."+request.Stage,
		attribute.String(otelhelper.ReportIDKey, pc.ReportID),
		attribute.String(otelhelper.TemplateIDKey, pc.TemplateID),
		attribute.String(otelhelper.StageKey, request.Stage),
		attribute.String(otelhelper.WorkerIDKey, o.workerID),
	)
	defer span.End()

	logger.InfoContext(ctx, "Running stage")

	stack, err := o.run(ctx, o.stages[idx], &pc)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.StageKey, request.Stage))
		logger.ErrorContext(ctx, "Stage failed", "error", err)

		return o.fail(ctx, request.Stage, &pc, err, stack)
	}

	if idx == len(o.stages)-1 {
		logger.InfoContext(ctx, "Pipeline completed")

		return nil
	}

	return o.publishStage(ctx, o.stages[idx+1].Name, pc)
}

// run executes a stage, converting a panic into an error with its stack.
func (o *Orchestrator) run(ctx context.Context, stage Stage, pc *models.PipelineContext) (stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
			stack = string(debug.Stack())
		}
	}()

	err = stage.Run(ctx, pc)
	if err != nil {
		stack = script.Backtrace(err)
	}

	return stack, err
}

func (o *Orchestrator) publishStage(ctx context.Context, stage string, pc models.PipelineContext) error {
	return o.bus.Publish(ctx, pc.ReportID, events.StageRequested{
		BaseEvent: events.NewBaseEvent(o.bus.GenerateID(), events.StageRequestedEvent, pc.ReportID, o.workerID),
		Stage:     stage,
		Context:   pc,
	})
}

// fail routes a stage error to the sink through the bus, or directly when publishing fails.
func (o *Orchestrator) fail(ctx context.Context, stage string, pc *models.PipelineContext, stageErr error, stack string) error {
	err := o.bus.Publish(ctx, pc.ReportID, events.StageFailed{
		BaseEvent: events.NewBaseEvent(o.bus.GenerateID(), events.StageFailedEvent, pc.ReportID, o.workerID),
		Stage:     stage,
		Error:     stageErr.Error(),
		Trace:     stack,
	})
	if err == nil {
		return nil
	}

	o.logger.WarnContext(ctx, "Failed to publish stage failure; invoking sink directly", "report_id", pc.ReportID, "error", err)

	return o.sink.Handle(ctx, stage, pc.ReportID, stageErr.Error(), stack)
}
