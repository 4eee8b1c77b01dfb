package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/middleware"
)

// RunEmitter emits workflow-level lifecycle events.
// ext.Registry satisfies it; workflow does not import ext.
type RunEmitter interface {
	StepEmitter
	EmitWorkflowStarted(ctx context.Context, run *Run)
	EmitWorkflowCompleted(ctx context.Context, run *Run, elapsed time.Duration)
	EmitWorkflowFailed(ctx context.Context, run *Run, err error)
}

// Runner orchestrates workflow execution: creating runs, building
// the Workflow context, invoking handlers, and managing state.
type Runner struct {
	registry   *Registry
	store      Store
	activities *activity.Table
	chain      middleware.Middleware
	emitter    RunEmitter
	logger     *slog.Logger
}

// NewRunner creates a workflow runner. Activity attempts pass through
// mws in order.
func NewRunner(
	registry *Registry,
	store Store,
	activities *activity.Table,
	emitter RunEmitter,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Runner {
	return &Runner{
		registry:   registry,
		store:      store,
		activities: activities,
		chain:      middleware.Chain(mws...),
		emitter:    emitter,
		logger:     logger,
	}
}

// Registry returns the workflow registry.
func (r *Runner) Registry() *Registry { return r.registry }

// Store returns the workflow store.
func (r *Runner) Store() Store { return r.store }

// Start starts a new workflow run with a typed input and executes it to
// completion. The input is JSON-marshaled and stored on the Run.
func Start[T any](ctx context.Context, runner *Runner, name, key string, input T) (*Run, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input for workflow %q: %w", name, err)
	}

	return runner.StartRaw(ctx, name, key, data)
}

// Result decodes the output of a completed run. A failed run yields its
// error; a run that is still running yields posauth.ErrRunInterrupted.
func Result[R any](run *Run) (R, error) {
	var out R
	switch run.State {
	case RunStateCompleted:
	case RunStateFailed:
		return out, fmt.Errorf("workflow %s run %s failed: %s", run.Name, run.ID, run.Error)
	default:
		return out, fmt.Errorf("workflow %s run %s: %w", run.Name, run.ID, posauth.ErrRunInterrupted)
	}
	if err := json.Unmarshal(run.Output, &out); err != nil {
		return out, fmt.Errorf("decode output of run %s: %w", run.ID, err)
	}
	return out, nil
}

// StartRaw starts a workflow run with pre-serialized JSON input and runs
// it synchronously. The run is stamped with the latest registered version.
// An empty key defaults to the run ID.
func (r *Runner) StartRaw(ctx context.Context, name, key string, input []byte) (*Run, error) {
	runner, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", posauth.ErrUnknownWorkflow, name)
	}

	now := time.Now().UTC()
	run := &Run{
		Entity:    posauth.NewEntity(),
		ID:        id.NewRunID(),
		Key:       key,
		Name:      name,
		State:     RunStateRunning,
		Input:     input,
		Version:   r.registry.LatestVersion(name),
		StartedAt: now,
	}
	if run.Key == "" {
		run.Key = run.ID.String()
	}

	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run for workflow %q: %w", name, err)
	}

	r.emitter.EmitWorkflowStarted(ctx, run)

	r.executeRun(ctx, run, runner, input)

	return run, nil
}

// executeRun runs the workflow handler and records the outcome. An
// interrupted run is left in the running state.
func (r *Runner) executeRun(ctx context.Context, run *Run, runner RunnerFunc, input []byte) {
	start := time.Now()

	wf := NewWorkflowContext(ctx, run, r.store, r.activities, r.chain, r.emitter, r.logger)

	output, err := runner(wf, input)
	elapsed := time.Since(start)

	if errors.Is(err, posauth.ErrRunInterrupted) {
		r.logger.Warn("workflow run interrupted",
			slog.String("run_id", run.ID.String()),
			slog.String("workflow", run.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	// The caller's context may be done by now; the outcome must still land.
	saveCtx := context.WithoutCancel(ctx)
	now := time.Now().UTC()

	if err != nil {
		run.State = RunStateFailed
		run.Error = err.Error()
		run.CompletedAt = &now
		run.UpdatedAt = now
		if updateErr := r.store.UpdateRun(saveCtx, run); updateErr != nil {
			r.logger.Error("failed to update run as failed",
				slog.String("run_id", run.ID.String()),
				slog.String("error", updateErr.Error()),
			)
		}
		r.emitter.EmitWorkflowFailed(ctx, run, err)
		return
	}

	run.State = RunStateCompleted
	run.Output = output
	run.CompletedAt = &now
	run.UpdatedAt = now
	if updateErr := r.store.UpdateRun(saveCtx, run); updateErr != nil {
		r.logger.Error("failed to update run as completed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", updateErr.Error()),
		)
	}
	r.emitter.EmitWorkflowCompleted(ctx, run, elapsed)
}

// Resume resumes a workflow run that was in "running" state (crash recovery).
// It re-executes the handler; steps with checkpoints are replayed.
// The run continues on its stamped version (not necessarily the latest).
func (r *Runner) Resume(ctx context.Context, runID id.RunID) (*Run, error) {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if run.State != RunStateRunning {
		return nil, fmt.Errorf("run %s is in state %q, not running", runID, run.State)
	}

	runner, ok := r.registry.GetVersion(run.Name, run.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %q version %d (run %s)", posauth.ErrUnknownWorkflow, run.Name, run.Version, runID)
	}

	r.executeRun(ctx, run, runner, run.Input)
	return run, nil
}

// ResumeAll finds all runs in "running" state and resumes them.
// Called at startup for crash recovery.
func (r *Runner) ResumeAll(ctx context.Context) error {
	runs, err := r.store.ListRuns(ctx, ListOpts{State: RunStateRunning})
	if err != nil {
		return fmt.Errorf("list running workflow runs: %w", err)
	}

	for _, run := range runs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Info("resuming workflow run",
			slog.String("run_id", run.ID.String()),
			slog.String("workflow", run.Name),
		)
		if _, resumeErr := r.Resume(ctx, run.ID); resumeErr != nil {
			r.logger.Error("failed to resume workflow run",
				slog.String("run_id", run.ID.String()),
				slog.String("error", resumeErr.Error()),
			)
		}
	}

	return nil
}
