// Package middleware provides composable middleware around activity
// attempts.
//
// A [Middleware] wraps one attempt of one activity. Middleware are composed
// into a chain using [Chain]. They are applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs the activity kind, step and outcome of each attempt
//   - [Recover] turns panics into transient activity errors
//   - [Tracing] wraps the attempt in an OpenTelemetry span
//   - [Metrics] records per-kind duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, c *activity.Call, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
