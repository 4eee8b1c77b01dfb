package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Option configures a Local orchestrator.
type Option func(*Local)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

// WithBaseContext bounds every run by ctx instead of by the caller's
// context. Cancelling ctx interrupts in-flight runs, which stay
// resumable.
func WithBaseContext(ctx context.Context) Option {
	return func(l *Local) { l.base = ctx }
}

// Local runs workflows on an in-process workflow.Runner with the signin
// workflows registered.
//
// A run is detached from the caller: when the caller's context ends
// first, the caller gets its context error while the run goes on to a
// terminal state under the base context. Run outcomes must therefore be
// persisted by a completion hook rather than by the caller alone.
type Local struct {
	runner *workflow.Runner
	base   context.Context
	logger *slog.Logger

	inflight sync.WaitGroup
}

var _ Orchestrator = (*Local)(nil)

// NewLocal returns an orchestrator over runner.
func NewLocal(runner *workflow.Runner, opts ...Option) *Local {
	l := &Local{runner: runner, base: context.Background(), logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartSignIn starts a sign-in run and returns its outcome.
func (l *Local) StartSignIn(ctx context.Context, runKey string, in signin.Input) (signin.Result, error) {
	return start[signin.Input, signin.Result](ctx, l, signin.SignInWorkflow, runKey, in)
}

// StartVerify starts a verify run and returns its outcome.
func (l *Local) StartVerify(ctx context.Context, runKey string, in signin.VerifyInput) (signin.VerifyResult, error) {
	return start[signin.VerifyInput, signin.VerifyResult](ctx, l, signin.VerifyWorkflow, runKey, in)
}

// Drain waits for detached runs to finish or for ctx to end.
func (l *Local) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain local runs: %w", ctx.Err())
	}
}

type finished struct {
	run *workflow.Run
	err error
}

func start[T, R any](ctx context.Context, l *Local, name, runKey string, in T) (R, error) {
	var zero R

	// Keep the caller's values (trace spans) but not its cancellation.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(l.base, cancel)

	done := make(chan finished, 1)
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		defer cancel()
		defer stop()
		run, err := workflow.Start(runCtx, l.runner, name, runKey, in)
		done <- finished{run: run, err: err}
	}()

	select {
	case f := <-done:
		if f.err != nil {
			return zero, f.err
		}
		l.logger.Debug("run finished",
			slog.String("run_id", f.run.ID.String()),
			slog.String("workflow", name),
			slog.String("state", string(f.run.State)),
		)
		return workflow.Result[R](f.run)
	case <-ctx.Done():
		l.logger.Info("caller left before run finished",
			slog.String("workflow", name),
			slog.String("run_key", runKey),
		)
		return zero, fmt.Errorf("await %s run: %w", name, ctx.Err())
	}
}
