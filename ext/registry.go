package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/vndocker/pos-AI-community/workflow"
)

// hooked pairs one hook implementation with its extension's name.
type hooked[H any] struct {
	name string
	hook H
}

// subscribe appends e to list when e implements H.
func subscribe[H any](list []hooked[H], e Extension) []hooked[H] {
	if h, ok := e.(H); ok {
		return append(list, hooked[H]{name: e.Name(), hook: h})
	}
	return list
}

// Registry fans run lifecycle events out to extensions. Each hook list is
// filled once in Register, so an emit only visits the extensions that
// implement that hook.
//
// *Registry satisfies workflow.RunEmitter.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	started   []hooked[WorkflowStarted]
	completed []hooked[WorkflowCompleted]
	failed    []hooked[WorkflowFailed]
	stepDone  []hooked[WorkflowStepCompleted]
	stepErr   []hooked[WorkflowStepFailed]
	retrying  []hooked[ActivityRetrying]
	shutdown  []hooked[Shutdown]
}

// NewRegistry returns an empty registry that logs hook errors to logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds e. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	r.started = subscribe(r.started, e)
	r.completed = subscribe(r.completed, e)
	r.failed = subscribe(r.failed, e)
	r.stepDone = subscribe(r.stepDone, e)
	r.stepErr = subscribe(r.stepErr, e)
	r.retrying = subscribe(r.retrying, e)
	r.shutdown = subscribe(r.shutdown, e)
}

// Extensions returns the registered extensions in order.
func (r *Registry) Extensions() []Extension { return r.extensions }

func (r *Registry) EmitWorkflowStarted(ctx context.Context, run *workflow.Run) {
	for _, h := range r.started {
		r.check("OnWorkflowStarted", h.name, h.hook.OnWorkflowStarted(ctx, run))
	}
}

func (r *Registry) EmitWorkflowCompleted(ctx context.Context, run *workflow.Run, elapsed time.Duration) {
	for _, h := range r.completed {
		r.check("OnWorkflowCompleted", h.name, h.hook.OnWorkflowCompleted(ctx, run, elapsed))
	}
}

func (r *Registry) EmitWorkflowFailed(ctx context.Context, run *workflow.Run, runErr error) {
	for _, h := range r.failed {
		r.check("OnWorkflowFailed", h.name, h.hook.OnWorkflowFailed(ctx, run, runErr))
	}
}

func (r *Registry) EmitStepCompleted(ctx context.Context, run *workflow.Run, stepName string, elapsed time.Duration) {
	for _, h := range r.stepDone {
		r.check("OnWorkflowStepCompleted", h.name, h.hook.OnWorkflowStepCompleted(ctx, run, stepName, elapsed))
	}
}

func (r *Registry) EmitStepFailed(ctx context.Context, run *workflow.Run, stepName string, stepErr error) {
	for _, h := range r.stepErr {
		r.check("OnWorkflowStepFailed", h.name, h.hook.OnWorkflowStepFailed(ctx, run, stepName, stepErr))
	}
}

func (r *Registry) EmitActivityRetrying(ctx context.Context, run *workflow.Run, stepName string, attempt int, delay time.Duration, attemptErr error) {
	for _, h := range r.retrying {
		r.check("OnActivityRetrying", h.name, h.hook.OnActivityRetrying(ctx, run, stepName, attempt, delay, attemptErr))
	}
}

// EmitShutdown runs every Shutdown hook. The engine bounds ctx with its
// shutdown timeout.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, h := range r.shutdown {
		r.check("OnShutdown", h.name, h.hook.OnShutdown(ctx))
	}
}

// check logs a hook error. Hook errors never reach the run.
func (r *Registry) check(hook, extName string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
