package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/middleware"
	"github.com/vndocker/pos-AI-community/workflow"
)

type invokeOutcome struct {
	OK      bool   `json:"ok"`
	Failure string `json:"failure,omitempty"`
}

// singleStep invokes DeliverCode once under opts and reports the outcome
// as data so the run itself completes.
func singleStep(opts activity.Options) func(*workflow.Workflow, struct{}) (invokeOutcome, error) {
	return func(wf *workflow.Workflow, _ struct{}) (invokeOutcome, error) {
		out, err := wf.Invoke(activity.DeliverCode, opts, activity.Input{Email: "a@b.co", Code: "000001"})
		if err != nil {
			return invokeOutcome{Failure: activity.FailureOf(err).String()}, nil
		}
		return invokeOutcome{OK: out.OK}, nil
	}
}

func runSingle(t *testing.T, env *testEnv, opts activity.Options) invokeOutcome {
	t.Helper()
	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("single", singleStep(opts)))
	run, err := workflow.Start(context.Background(), env.runner, "single", "", struct{}{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := workflow.Result[invokeOutcome](run)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	return res
}

func TestInvoke_RetriesTransientThenSucceeds(t *testing.T) {
	em := &recordingEmitter{}
	env := newTestEnv(em)
	env.acts.set(activity.DeliverCode, failTimes(2, errFlaky))

	res := runSingle(t, env, fastOpts(3, activity.FailureRejected))
	if !res.OK {
		t.Fatalf("outcome = %+v, want OK", res)
	}
	if env.acts.count(activity.DeliverCode) != 3 {
		t.Errorf("attempts = %d, want 3", env.acts.count(activity.DeliverCode))
	}
	if len(em.retries) != 2 || em.retries[0] != 1 || em.retries[1] != 2 {
		t.Errorf("retry events = %v, want [1 2]", em.retries)
	}
	if len(em.completed) != 1 || em.completed[0] != "01:deliver_code" {
		t.Errorf("completed steps = %v", em.completed)
	}
}

func TestInvoke_ExhaustsAttempts(t *testing.T) {
	em := &recordingEmitter{}
	env := newTestEnv(em)
	env.acts.set(activity.DeliverCode, failTimes(10, errFlaky))

	res := runSingle(t, env, fastOpts(3))
	if res.OK || res.Failure != "Transient" {
		t.Fatalf("outcome = %+v, want transient failure", res)
	}
	if env.acts.count(activity.DeliverCode) != 3 {
		t.Errorf("attempts = %d, want 3", env.acts.count(activity.DeliverCode))
	}
	if len(em.failed) != 1 {
		t.Errorf("failed steps = %v, want one", em.failed)
	}
}

func TestInvoke_NonRetryableStopsImmediately(t *testing.T) {
	env := newTestEnv(nil)
	env.acts.set(activity.DeliverCode, failTimes(10, activity.Reject("smtp", errors.New("550 no such user"))))

	res := runSingle(t, env, fastOpts(3, activity.FailureRejected))
	if res.Failure != "PermanentRejection" {
		t.Fatalf("outcome = %+v, want permanent rejection", res)
	}
	if env.acts.count(activity.DeliverCode) != 1 {
		t.Errorf("attempts = %d, want 1", env.acts.count(activity.DeliverCode))
	}
}

func TestInvoke_InvalidInputNeverRetried(t *testing.T) {
	env := newTestEnv(nil)
	env.acts.set(activity.DeliverCode, failTimes(10, activity.Invalid("deliver code", errors.New("email required"))))

	res := runSingle(t, env, fastOpts(3))
	if res.Failure != "InvalidInput" {
		t.Fatalf("outcome = %+v, want invalid input", res)
	}
	if env.acts.count(activity.DeliverCode) != 1 {
		t.Errorf("attempts = %d, want 1", env.acts.count(activity.DeliverCode))
	}
}

func TestInvoke_TimeoutAbandonsAttempt(t *testing.T) {
	env := newTestEnv(nil)
	release := make(chan struct{})
	defer close(release)
	// Ignores its context entirely.
	env.acts.set(activity.DeliverCode, func(_ context.Context, _ activity.Input) (activity.Output, error) {
		<-release
		return activity.Output{OK: true}, nil
	})

	opts := fastOpts(2)
	opts.Timeout = 20 * time.Millisecond

	start := time.Now()
	res := runSingle(t, env, opts)
	if res.Failure != "Transient" {
		t.Fatalf("outcome = %+v, want transient timeout", res)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if env.acts.count(activity.DeliverCode) != 2 {
		t.Errorf("attempts = %d, want 2", env.acts.count(activity.DeliverCode))
	}
}

func TestInvoke_PanicIsTransient(t *testing.T) {
	env := newTestEnv(nil)
	env.acts.set(activity.DeliverCode, func(_ context.Context, _ activity.Input) (activity.Output, error) {
		panic("smtp client exploded")
	})

	res := runSingle(t, env, fastOpts(2))
	if res.Failure != "Transient" {
		t.Fatalf("outcome = %+v, want transient", res)
	}
	if env.acts.count(activity.DeliverCode) != 2 {
		t.Errorf("attempts = %d, want 2", env.acts.count(activity.DeliverCode))
	}
}

func TestInvoke_ReplaysCheckpointedFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.acts.set(activity.DeliverCode, failTimes(10, activity.Reject("smtp", errors.New("550 rejected"))))

	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("single", singleStep(fastOpts(3, activity.FailureRejected))))
	run, err := workflow.Start(context.Background(), env.runner, "single", "", struct{}{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	env.acts.reset()
	run.State = workflow.RunStateRunning
	if err := env.store.UpdateRun(context.Background(), run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	resumed, err := env.runner.Resume(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	res, err := workflow.Result[invokeOutcome](resumed)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Failure != "PermanentRejection" {
		t.Errorf("replayed outcome = %+v, want permanent rejection", res)
	}
	if env.acts.count(activity.DeliverCode) != 0 {
		t.Errorf("activity re-invoked %d times on replay", env.acts.count(activity.DeliverCode))
	}
}

func TestInvoke_MiddlewareSeesEveryAttempt(t *testing.T) {
	var attempts []int
	var kinds atomic.Int32
	spy := func(ctx context.Context, c *activity.Call, next middleware.Handler) error {
		attempts = append(attempts, c.Attempt)
		if c.Kind == activity.DeliverCode && c.MaxAttempts == 3 && c.Step == 1 {
			kinds.Add(1)
		}
		return next(ctx)
	}
	env := newTestEnv(nil, spy)
	env.acts.set(activity.DeliverCode, failTimes(1, errFlaky))

	res := runSingle(t, env, fastOpts(3))
	if !res.OK {
		t.Fatalf("outcome = %+v, want OK", res)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("middleware attempts = %v, want [1 2]", attempts)
	}
	if kinds.Load() != 2 {
		t.Errorf("call descriptor mismatch on %d attempts", 2-kinds.Load())
	}
}

func TestStepName(t *testing.T) {
	if got := workflow.StepName(4, activity.DeliverCode); got != "04:deliver_code" {
		t.Errorf("StepName = %q, want 04:deliver_code", got)
	}
}

func TestInvoke_PlainActivityErrorIsClassified(t *testing.T) {
	env := newTestEnv(nil)
	var got error
	env.acts.set(activity.DeliverCode, failTimes(10, errFlaky))
	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("classify", func(wf *workflow.Workflow, _ struct{}) (struct{}, error) {
		_, got = wf.Invoke(activity.DeliverCode, fastOpts(1), activity.Input{})
		return struct{}{}, nil
	}))
	if _, err := workflow.Start(context.Background(), env.runner, "classify", "", struct{}{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var ae *activity.Error
	if !errors.As(got, &ae) || ae.Failure != activity.FailureTransient {
		t.Fatalf("err = %v, want transient *activity.Error", got)
	}
	if !errors.Is(got, errFlaky) {
		t.Errorf("cause lost: %v", got)
	}
}

// brokenCheckpoints fails every checkpoint read.
type brokenCheckpoints struct {
	workflow.Store
}

var errStoreDown = errors.New("dial tcp 10.0.0.5:6379: connection refused")

func (brokenCheckpoints) GetCheckpoint(context.Context, id.RunID, string) ([]byte, error) {
	return nil, errStoreDown
}

func TestInvoke_StoreErrorIsNotAnActivityFailure(t *testing.T) {
	env := newTestEnv(nil)
	runner := workflow.NewRunner(env.reg, brokenCheckpoints{env.store}, env.acts.table(), noopEmitter{}, testLogger())

	var got error
	workflow.RegisterDefinition(env.reg, workflow.NewWorkflow("store-down", func(wf *workflow.Workflow, _ struct{}) (struct{}, error) {
		_, got = wf.Invoke(activity.DeliverCode, fastOpts(3), activity.Input{})
		return struct{}{}, got
	}))

	run, err := workflow.Start(context.Background(), runner, "store-down", "", struct{}{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	var ae *activity.Error
	if errors.As(got, &ae) || !errors.Is(got, errStoreDown) {
		t.Fatalf("err = %v, want the store error unclassified", got)
	}
	if env.acts.count(activity.DeliverCode) != 0 {
		t.Errorf("activity ran %d times despite the store failure", env.acts.count(activity.DeliverCode))
	}
	if run.State != workflow.RunStateFailed {
		t.Errorf("state = %q, want failed", run.State)
	}
}
