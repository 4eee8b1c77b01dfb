package audithook

import (
	"context"
	"time"
)

// Audit event actions, one per lifecycle hook.
const (
	ActionWorkflowStarted       = "workflow.started"
	ActionWorkflowStepCompleted = "workflow.step_completed"
	ActionWorkflowStepFailed    = "workflow.step_failed"
	ActionWorkflowCompleted     = "workflow.completed"
	ActionWorkflowFailed        = "workflow.failed"
	ActionActivityRetrying      = "activity.retrying"
)

// Categories group related actions.
const (
	CategoryWorkflow = "posauth.workflow"
	CategoryActivity = "posauth.activity"
)

// ResourceWorkflow is the Resource of every event; ResourceID is the run ID.
const ResourceWorkflow = "workflow_run"

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// kind fixes the severity, outcome and category of an action.
type kind struct {
	severity string
	outcome  string
	category string
}

var kinds = map[string]kind{
	ActionWorkflowStarted:       {SeverityInfo, OutcomeSuccess, CategoryWorkflow},
	ActionWorkflowStepCompleted: {SeverityInfo, OutcomeSuccess, CategoryWorkflow},
	ActionWorkflowStepFailed:    {SeverityWarning, OutcomeFailure, CategoryWorkflow},
	ActionWorkflowCompleted:     {SeverityInfo, OutcomeSuccess, CategoryWorkflow},
	ActionWorkflowFailed:        {SeverityCritical, OutcomeFailure, CategoryWorkflow},
	ActionActivityRetrying:      {SeverityWarning, OutcomeFailure, CategoryActivity},
}

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionWorkflowStarted,
		ActionWorkflowStepCompleted,
		ActionWorkflowStepFailed,
		ActionWorkflowCompleted,
		ActionWorkflowFailed,
		ActionActivityRetrying,
	}
}

// AuditEvent is one audit record. It is the JSON payload published by
// KafkaRecorder.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id,omitempty"`
	Category   string         `json:"category"`
	Severity   string         `json:"severity"`
	Outcome    string         `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Recorder delivers audit events to a backend.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// RecorderFunc lets a plain function act as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}
