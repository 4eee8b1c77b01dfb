package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vndocker/pos-AI-community/id"
)

// Step outcomes reported on a timeline.
const (
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// TimelineEntry is one checkpointed step of a run. Activity outputs and
// failure messages are omitted because they carry codes and addresses;
// only the outcome and the failure type are reported.
type TimelineEntry struct {
	StepName  string    `json:"step_name"`
	Outcome   string    `json:"outcome"`
	Failure   string    `json:"failure,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetTimeline returns the checkpointed steps of a run in the order they
// were saved.
func (r *Runner) GetTimeline(ctx context.Context, runID id.RunID) ([]TimelineEntry, error) {
	checkpoints, err := r.store.ListCheckpoints(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for run %s: %w", runID, err)
	}

	// Checkpoint IDs are K-sortable, so they break timestamp ties.
	sort.SliceStable(checkpoints, func(i, j int) bool {
		if checkpoints[i].CreatedAt.Equal(checkpoints[j].CreatedAt) {
			return checkpoints[i].ID.String() < checkpoints[j].ID.String()
		}
		return checkpoints[i].CreatedAt.Before(checkpoints[j].CreatedAt)
	})

	entries := make([]TimelineEntry, len(checkpoints))
	for i, cp := range checkpoints {
		entries[i] = TimelineEntry{
			StepName:  cp.StepName,
			Outcome:   StepCompleted,
			CreatedAt: cp.CreatedAt,
		}
		var rec stepRecord
		if json.Unmarshal(cp.Data, &rec) == nil && rec.Error != nil {
			entries[i].Outcome = StepFailed
			entries[i].Failure = rec.Error.Failure
		}
	}
	return entries, nil
}
