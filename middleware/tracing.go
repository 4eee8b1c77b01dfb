package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vndocker/pos-AI-community/activity"
)

// tracerName is the instrumentation scope name for activity tracing.
const tracerName = "github.com/vndocker/pos-AI-community"

// Tracing returns middleware that wraps each attempt in an OpenTelemetry
// span. Without a global TracerProvider the noop tracer is used.
//
// Span attributes: posauth.run.id, posauth.workflow, posauth.activity,
// posauth.step, posauth.attempt. On error the span status is codes.Error
// and posauth.failure carries the failure class.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, c *activity.Call, next Handler) error {
		ctx, span := tracer.Start(ctx, "posauth.activity.execute",
			trace.WithAttributes(
				attribute.String("posauth.run.id", c.RunID),
				attribute.String("posauth.workflow", c.Workflow),
				attribute.String("posauth.activity", c.Kind.String()),
				attribute.Int("posauth.step", c.Step),
				attribute.Int("posauth.attempt", c.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("posauth.failure", activity.FailureOf(err).String()))
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
