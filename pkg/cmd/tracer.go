package cmd

import (
	"context"
	"fmt"

	"github.com/dukex/reportgen/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer returns an exporting tracer when enabled and a no-op one otherwise,
// together with the shutdown hook of the provider.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool, name string) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}
