package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/middleware"
)

// StepEmitter is called by the Workflow to emit step lifecycle events.
// ext.Registry satisfies it; workflow does not import ext.
type StepEmitter interface {
	EmitStepCompleted(ctx context.Context, run *Run, stepName string, elapsed time.Duration)
	EmitStepFailed(ctx context.Context, run *Run, stepName string, err error)
	EmitActivityRetrying(ctx context.Context, run *Run, stepName string, attempt int, delay time.Duration, err error)
}

// Workflow is the execution context passed to workflow handler functions.
// Its Invoke method runs activities with a timeout and retry policy and
// checkpoints every terminal outcome, so a resumed run replays completed
// steps instead of repeating their side effects.
//
// A Workflow belongs to one execution of one run and is not safe for
// concurrent use.
type Workflow struct {
	ctx        context.Context
	run        *Run
	store      Store
	activities *activity.Table
	chain      middleware.Middleware
	emitter    StepEmitter
	logger     *slog.Logger

	step int
}

// NewWorkflowContext creates a new Workflow execution context.
// This is called by the workflow runner, not by users.
func NewWorkflowContext(
	ctx context.Context,
	run *Run,
	store Store,
	activities *activity.Table,
	chain middleware.Middleware,
	emitter StepEmitter,
	logger *slog.Logger,
) *Workflow {
	if chain == nil {
		chain = middleware.Chain()
	}
	return &Workflow{
		ctx:        ctx,
		run:        run,
		store:      store,
		activities: activities,
		chain:      chain,
		emitter:    emitter,
		logger:     logger,
	}
}

// Context returns the underlying context.Context.
func (w *Workflow) Context() context.Context { return w.ctx }

// RunID returns the workflow run ID.
func (w *Workflow) RunID() id.RunID { return w.run.ID }

// Run returns the workflow run.
func (w *Workflow) Run() *Run { return w.run }

// Now returns the run's start time. It is stable across resumes, so
// handlers that compare against it stay deterministic.
func (w *Workflow) Now() time.Time { return w.run.StartedAt }

// Logger returns the run-scoped logger.
func (w *Workflow) Logger() *slog.Logger {
	return w.logger.With(
		slog.String("run_id", w.run.ID.String()),
		slog.String("workflow", w.run.Name),
	)
}
