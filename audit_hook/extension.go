package audithook

import (
	"context"
	"log/slog"
	"time"

	"github.com/vndocker/pos-AI-community/ext"
	"github.com/vndocker/pos-AI-community/workflow"
)

var (
	_ ext.Extension             = (*Extension)(nil)
	_ ext.WorkflowStarted       = (*Extension)(nil)
	_ ext.WorkflowStepCompleted = (*Extension)(nil)
	_ ext.WorkflowStepFailed    = (*Extension)(nil)
	_ ext.WorkflowCompleted     = (*Extension)(nil)
	_ ext.WorkflowFailed        = (*Extension)(nil)
	_ ext.ActivityRetrying      = (*Extension)(nil)
	_ ext.Shutdown              = (*Extension)(nil)
)

// Extension turns run lifecycle events into audit events. Recorder
// failures are logged and never fail the run.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil means every action
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an Extension that records through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

func (e *Extension) OnWorkflowStarted(ctx context.Context, r *workflow.Run) error {
	e.emit(ctx, ActionWorkflowStarted, r, nil, map[string]any{"run_key": r.Key})
	return nil
}

func (e *Extension) OnWorkflowStepCompleted(ctx context.Context, r *workflow.Run, stepName string, elapsed time.Duration) error {
	e.emit(ctx, ActionWorkflowStepCompleted, r, nil, map[string]any{
		"step_name":  stepName,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return nil
}

func (e *Extension) OnWorkflowStepFailed(ctx context.Context, r *workflow.Run, stepName string, stepErr error) error {
	e.emit(ctx, ActionWorkflowStepFailed, r, stepErr, map[string]any{"step_name": stepName})
	return nil
}

func (e *Extension) OnWorkflowCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error {
	e.emit(ctx, ActionWorkflowCompleted, r, nil, map[string]any{"elapsed_ms": elapsed.Milliseconds()})
	return nil
}

func (e *Extension) OnWorkflowFailed(ctx context.Context, r *workflow.Run, runErr error) error {
	e.emit(ctx, ActionWorkflowFailed, r, runErr, nil)
	return nil
}

func (e *Extension) OnActivityRetrying(ctx context.Context, r *workflow.Run, stepName string, attempt int, delay time.Duration, attemptErr error) error {
	e.emit(ctx, ActionActivityRetrying, r, attemptErr, map[string]any{
		"step_name": stepName,
		"attempt":   attempt,
		"delay_ms":  delay.Milliseconds(),
	})
	return nil
}

// OnShutdown closes the recorder if it holds a connection.
func (e *Extension) OnShutdown(_ context.Context) error {
	if c, ok := e.recorder.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (e *Extension) emit(ctx context.Context, action string, r *workflow.Run, cause error, meta map[string]any) {
	if e.enabled != nil && !e.enabled[action] {
		return
	}
	k := kinds[action]

	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta["workflow_name"] = r.Name

	evt := &AuditEvent{
		Action:     action,
		Resource:   ResourceWorkflow,
		ResourceID: r.ID.String(),
		Category:   k.category,
		Severity:   k.severity,
		Outcome:    k.outcome,
		Metadata:   meta,
		OccurredAt: e.now(),
	}
	if cause != nil {
		evt.Reason = cause.Error()
		meta["error"] = evt.Reason
	}

	if err := e.recorder.Record(ctx, evt); err != nil {
		e.logger.Warn("audit event dropped",
			slog.String("action", action),
			slog.String("run_id", evt.ResourceID),
			slog.String("error", err.Error()),
		)
	}
}
