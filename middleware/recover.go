package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vndocker/pos-AI-community/activity"
)

// Recover returns middleware that recovers from panics in the handler
// chain. A panic becomes a transient activity error and is logged with a
// stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *activity.Call, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("activity panicked",
					slog.String("activity", c.Kind.String()),
					slog.String("run_id", c.RunID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = activity.Transient(c.Kind.String(), fmt.Errorf("panic: %v", r))
			}
		}()
		return next(ctx)
	}
}
