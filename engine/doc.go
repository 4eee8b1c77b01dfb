// Package engine wires the sign-in subsystems together: the workflow
// registry with both sign-in workflows, the activity table, the default
// middleware chain, and the extension registry that receives run
// lifecycle events.
//
// The engine package sits above the subsystem packages and below the
// application layer, so the root package and workflow stay free of
// imports on ext, observability or signin.
//
// # Building an Engine
//
//	set := activity.NewSet(verifier, mailer)
//	eng, err := engine.Build(redisStore, set.Table(),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(audithook.New(recorder)),
//	)
//	if err := eng.Start(ctx); err != nil { ... } // resumes interrupted runs
//	defer eng.Stop(ctx)
//
//	svc := auth.NewService(eng.Client(), eng.OTPStore())
//
// # Options
//
//   - [WithConfig]: engine configuration
//   - [WithLogger]: structured logger
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware after the default chain
//   - [WithPolicies]: override per-activity timeouts and retries
//   - [WithTracerProvider], [WithMeterProvider]: OpenTelemetry providers
package engine
