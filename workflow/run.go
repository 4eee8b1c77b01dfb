package workflow

import (
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
)

// RunState represents the lifecycle state of a workflow run.
type RunState string

const (
	// RunStateRunning means the workflow is executing or was interrupted
	// and awaits resume.
	RunStateRunning RunState = "running"
	// RunStateCompleted means the workflow returned a result.
	RunStateCompleted RunState = "completed"
	// RunStateFailed means the workflow failed terminally.
	RunStateFailed RunState = "failed"
)

// Run represents a single execution of a workflow.
type Run struct {
	posauth.Entity

	ID id.RunID `json:"id"`

	// Key is the caller-chosen unique run key, such as
	// "signin-user@example.com-1700000000000000000".
	Key string `json:"key"`

	Name        string     `json:"name"`
	Version     int        `json:"version"`
	State       RunState   `json:"state"`
	Input       []byte     `json:"input,omitempty"`
	Output      []byte     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
