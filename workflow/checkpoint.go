package workflow

import (
	"time"

	"github.com/vndocker/pos-AI-community/id"
)

// Checkpoint stores the terminal outcome of one activity step. On resume
// the outcome is replayed instead of invoking the activity again.
type Checkpoint struct {
	ID        id.CheckpointID `json:"id"`
	RunID     id.RunID        `json:"run_id"`
	StepName  string          `json:"step_name"`
	Data      []byte          `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}
