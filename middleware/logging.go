package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vndocker/pos-AI-community/activity"
)

// Logging returns middleware that logs each attempt and its outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *activity.Call, next Handler) error {
		logger.Debug("activity started",
			slog.String("activity", c.Kind.String()),
			slog.String("run_id", c.RunID),
			slog.Int("step", c.Step),
			slog.Int("attempt", c.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("activity failed",
				slog.String("activity", c.Kind.String()),
				slog.String("workflow", c.Workflow),
				slog.String("run_id", c.RunID),
				slog.Int("attempt", c.Attempt),
				slog.Int("max_attempts", c.MaxAttempts),
				slog.Duration("elapsed", elapsed),
				slog.String("failure", activity.FailureOf(err).String()),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("activity completed",
				slog.String("activity", c.Kind.String()),
				slog.String("workflow", c.Workflow),
				slog.String("run_id", c.RunID),
				slog.Int("attempt", c.Attempt),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
