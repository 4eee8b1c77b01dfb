package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vndocker/pos-AI-community/activity"
)

// meterName is the instrumentation scope name for activity metrics.
const meterName = "github.com/vndocker/pos-AI-community"

// Metrics returns middleware that records per-attempt metrics using the
// global OTel MeterProvider.
//
// Instruments:
//   - posauth.activity.duration (Float64Histogram): attempt time in seconds
//   - posauth.activity.executions (Int64Counter): total attempts
//
// Both carry the attributes activity, workflow and status ("ok" or the
// failure class).
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, dErr := meter.Float64Histogram(
		"posauth.activity.duration",
		metric.WithDescription("Duration of activity attempts in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"posauth.activity.executions",
		metric.WithDescription("Total number of activity attempts"),
		metric.WithUnit("{attempt}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, c *activity.Call, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = activity.FailureOf(err).String()
		}

		attrs := metric.WithAttributes(
			attribute.String("activity", c.Kind.String()),
			attribute.String("workflow", c.Workflow),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
