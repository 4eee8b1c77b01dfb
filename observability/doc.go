// Package observability provides the OpenTelemetry metrics extension for
// the sign-in engine. MetricsExtension implements lifecycle hooks to
// record counters for runs, steps and activity retries.
//
// For per-attempt tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
