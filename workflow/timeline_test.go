package workflow_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/workflow"
)

func TestGetTimeline_OrderedSteps(t *testing.T) {
	env := newTestEnv(nil)
	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("timeline-wf", threeSteps))

	run, err := workflow.Start(context.Background(), env.runner, "timeline-wf", "", "user@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.State != workflow.RunStateCompleted {
		t.Fatalf("state = %q, want completed", run.State)
	}

	timeline, tlErr := env.runner.GetTimeline(context.Background(), run.ID)
	if tlErr != nil {
		t.Fatalf("GetTimeline: %v", tlErr)
	}
	if len(timeline) != 3 {
		t.Fatalf("timeline entries = %d, want 3", len(timeline))
	}

	expectedNames := []string{"01:validate_email", "02:generate_code", "03:deliver_code"}
	for i, entry := range timeline {
		if entry.StepName != expectedNames[i] {
			t.Errorf("timeline[%d].StepName = %q, want %q", i, entry.StepName, expectedNames[i])
		}
		if entry.Outcome != workflow.StepCompleted {
			t.Errorf("timeline[%d].Outcome = %q, want completed", i, entry.Outcome)
		}
		if entry.CreatedAt.IsZero() {
			t.Errorf("timeline[%d].CreatedAt is zero", i)
		}
	}

	for i := 1; i < len(timeline); i++ {
		if timeline[i].CreatedAt.Before(timeline[i-1].CreatedAt) {
			t.Errorf("timeline[%d] (%v) is before timeline[%d] (%v)",
				i, timeline[i].CreatedAt, i-1, timeline[i-1].CreatedAt)
		}
	}
}

func TestGetTimeline_OmitsCodesAndAddresses(t *testing.T) {
	env := newTestEnv(nil)
	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("timeline-redact", threeSteps))

	run, err := workflow.Start(context.Background(), env.runner, "timeline-redact", "", "victim@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	timeline, err := env.runner.GetTimeline(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	body, err := json.Marshal(timeline)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"123456", "victim@example.com"} {
		if strings.Contains(string(body), secret) {
			t.Errorf("timeline JSON contains %q: %s", secret, body)
		}
	}
}

func TestGetTimeline_ReportsFailureType(t *testing.T) {
	env := newTestEnv(nil)
	env.acts.set(activity.DeliverCode, func(_ context.Context, _ activity.Input) (activity.Output, error) {
		return activity.Output{}, activity.Reject("smtp", errFlaky)
	})
	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("timeline-fail", threeSteps))

	run, err := workflow.Start(context.Background(), env.runner, "timeline-fail", "", "user@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	timeline, err := env.runner.GetTimeline(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	if len(timeline) != 3 {
		t.Fatalf("timeline entries = %d, want 3", len(timeline))
	}
	last := timeline[2]
	if last.Outcome != workflow.StepFailed {
		t.Errorf("outcome = %q, want failed", last.Outcome)
	}
	if last.Failure != activity.FailureRejected.String() {
		t.Errorf("failure = %q, want %q", last.Failure, activity.FailureRejected.String())
	}
}
