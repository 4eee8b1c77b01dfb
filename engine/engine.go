package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/client"
	"github.com/vndocker/pos-AI-community/ext"
	mw "github.com/vndocker/pos-AI-community/middleware"
	"github.com/vndocker/pos-AI-community/observability"
	"github.com/vndocker/pos-AI-community/otp"
	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/workflow"
)

const instrumentationName = "github.com/vndocker/pos-AI-community"

// Engine holds the wired local executor.
type Engine struct {
	config     posauth.Config
	storer     posauth.Storer
	otpStore   otp.Store
	extensions *ext.Registry
	registry   *workflow.Registry
	runner     *workflow.Runner
	local      *client.Local
	policies   signin.Policies
	mws        []mw.Middleware
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	pendingExts []ext.Extension

	// base bounds detached runs and the pruner; Stop cancels it.
	base   context.Context
	cancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg posauth.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pendingExts = append(eng.pendingExts, e) }
}

// WithMiddleware adds middleware after the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithPolicies overrides the per-activity timeouts and retry policies.
func WithPolicies(p signin.Policies) Option {
	return func(eng *Engine) { eng.policies = p }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for both the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// Build creates an Engine over store. The store must implement
// workflow.Store and otp.Store.
func Build(store posauth.Storer, activities *activity.Table, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, posauth.ErrNoStore
	}
	ws, ok := store.(workflow.Store)
	if !ok {
		return nil, fmt.Errorf("posauth: store does not implement workflow.Store")
	}
	cs, ok := store.(otp.Store)
	if !ok {
		return nil, fmt.Errorf("posauth: store does not implement otp.Store")
	}

	eng := &Engine{
		config:   posauth.DefaultConfig(),
		storer:   store,
		otpStore: cs,
		policies: signin.DefaultPolicies(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	eng.extensions = ext.NewRegistry(eng.logger)

	var (
		tracingMw mw.Middleware
		metricsMw mw.Middleware
		obsExt    *observability.MetricsExtension
	)
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)
	for _, e := range eng.pendingExts {
		eng.extensions.Register(e)
	}

	// recover → tracing → metrics → logging → caller middleware.
	allMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}
	allMws = append(allMws, eng.mws...)

	eng.registry = workflow.NewRegistry()
	signin.Register(eng.registry, eng.policies)
	eng.runner = workflow.NewRunner(eng.registry, ws, activities, eng.extensions, eng.logger, allMws...)

	eng.base, eng.cancel = context.WithCancel(context.Background())
	eng.local = client.NewLocal(eng.runner,
		client.WithBaseContext(eng.base),
		client.WithLogger(eng.logger),
	)

	return eng, nil
}

// Start resumes runs left in "running" state when ResumeOnStart is set
// and starts pruning finished runs when RunRetention is set. Resume
// failures are logged, not returned.
func (eng *Engine) Start(ctx context.Context) error {
	if eng.config.ResumeOnStart {
		if err := eng.runner.ResumeAll(ctx); err != nil {
			eng.logger.Warn("failed to resume workflow runs",
				slog.String("error", err.Error()),
			)
		}
	}
	if eng.config.RunRetention > 0 && eng.config.PruneInterval > 0 {
		go eng.pruneLoop()
	}
	return nil
}

// Stop waits for in-flight runs, interrupts those still going when
// ShutdownTimeout elapses, and notifies extensions of shutdown.
func (eng *Engine) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, eng.config.ShutdownTimeout)
	defer cancel()

	drainErr := eng.local.Drain(ctx)
	if drainErr != nil {
		eng.logger.Warn("interrupting unfinished runs", slog.String("error", drainErr.Error()))
	}
	eng.cancel()
	eng.extensions.EmitShutdown(ctx)
	return nil
}

// Prune deletes finished runs older than RunRetention.
func (eng *Engine) Prune(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-eng.config.RunRetention)
	n, err := eng.runner.Store().PruneRuns(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("prune runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

func (eng *Engine) pruneLoop() {
	ticker := time.NewTicker(eng.config.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-eng.base.Done():
			return
		case <-ticker.C:
			n, err := eng.Prune(eng.base)
			if err != nil {
				eng.logger.Warn("prune failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				eng.logger.Info("pruned finished runs", slog.Int("count", n))
			}
		}
	}
}

// Client returns the orchestrator that runs workflows on this engine.
func (eng *Engine) Client() *client.Local { return eng.local }

// Config returns the engine configuration.
func (eng *Engine) Config() posauth.Config { return eng.config }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the workflow registry.
func (eng *Engine) Registry() *workflow.Registry { return eng.registry }

// Runner returns the workflow runner.
func (eng *Engine) Runner() *workflow.Runner { return eng.runner }

// Store returns the lifecycle view of the backing store.
func (eng *Engine) Store() posauth.Storer { return eng.storer }

// OTPStore returns the code store.
func (eng *Engine) OTPStore() otp.Store { return eng.otpStore }
