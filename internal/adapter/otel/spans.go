package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tracescope"

// StartDeriveSpan starts a span for one session recomputation.
func StartDeriveSpan(ctx context.Context, sessionID string, generation uint64, events int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session.derive",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int64("session.generation", int64(generation)),
			attribute.Int("trace.events", events),
		),
	)
}

// StartStageSpan starts a span for one pipeline stage (filter, timeline, diagram, insight).
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session."+stage,
		trace.WithAttributes(attribute.String("pipeline.stage", stage)),
	)
}

// StartLoadSpan starts a span for parsing a trace file.
func StartLoadSpan(ctx context.Context, source string, size int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "trace.load",
		trace.WithAttributes(
			attribute.String("trace.source", source),
			attribute.Int("trace.bytes", size),
		),
	)
}
