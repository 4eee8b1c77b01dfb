package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/middleware"
	"github.com/vndocker/pos-AI-community/store/memory"
	"github.com/vndocker/pos-AI-community/workflow"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noopEmitter implements workflow.RunEmitter with no-ops.
type noopEmitter struct{}

func (noopEmitter) EmitStepCompleted(_ context.Context, _ *workflow.Run, _ string, _ time.Duration) {
}
func (noopEmitter) EmitStepFailed(_ context.Context, _ *workflow.Run, _ string, _ error) {}
func (noopEmitter) EmitActivityRetrying(_ context.Context, _ *workflow.Run, _ string, _ int, _ time.Duration, _ error) {
}
func (noopEmitter) EmitWorkflowStarted(_ context.Context, _ *workflow.Run) {}
func (noopEmitter) EmitWorkflowCompleted(_ context.Context, _ *workflow.Run, _ time.Duration) {
}
func (noopEmitter) EmitWorkflowFailed(_ context.Context, _ *workflow.Run, _ error) {}

// recordingEmitter captures step and retry events.
type recordingEmitter struct {
	noopEmitter

	mu        sync.Mutex
	completed []string
	failed    []string
	retries   []int
}

func (e *recordingEmitter) EmitStepCompleted(_ context.Context, _ *workflow.Run, step string, _ time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, step)
}

func (e *recordingEmitter) EmitStepFailed(_ context.Context, _ *workflow.Run, step string, _ error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = append(e.failed, step)
}

func (e *recordingEmitter) EmitActivityRetrying(_ context.Context, _ *workflow.Run, _ string, attempt int, _ time.Duration, _ error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retries = append(e.retries, attempt)
}

// fakeActivities binds every kind to a counting function whose behavior
// can be replaced per kind.
type fakeActivities struct {
	calls [5]atomic.Int32
	funcs map[activity.Kind]activity.Func
}

func newFakeActivities() *fakeActivities {
	return &fakeActivities{funcs: make(map[activity.Kind]activity.Func)}
}

func (f *fakeActivities) set(k activity.Kind, fn activity.Func) { f.funcs[k] = fn }

func (f *fakeActivities) count(k activity.Kind) int { return int(f.calls[k].Load()) }

func (f *fakeActivities) reset() {
	for i := range f.calls {
		f.calls[i].Store(0)
	}
}

func (f *fakeActivities) table() *activity.Table {
	var t activity.Table
	for _, k := range activity.Kinds() {
		t[k] = func(ctx context.Context, in activity.Input) (activity.Output, error) {
			f.calls[k].Add(1)
			if fn, ok := f.funcs[k]; ok {
				return fn(ctx, in)
			}
			if k == activity.GenerateCode {
				return activity.Output{OK: true, Code: "123456"}, nil
			}
			return activity.Output{OK: true}, nil
		}
	}
	return &t
}

// failTimes returns an activity that fails n times with err, then succeeds.
func failTimes(n int, err error) activity.Func {
	var calls atomic.Int32
	return func(_ context.Context, _ activity.Input) (activity.Output, error) {
		if int(calls.Add(1)) <= n {
			return activity.Output{}, err
		}
		return activity.Output{OK: true}, nil
	}
}

var errFlaky = errors.New("connection reset by peer")

func fastOpts(attempts int, nonRetryable ...activity.Failure) activity.Options {
	return activity.Options{
		Timeout: time.Second,
		Retry: activity.RetryPolicy{
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			MaxAttempts:     attempts,
			NonRetryable:    nonRetryable,
		},
	}
}

type testEnv struct {
	runner *workflow.Runner
	reg    *workflow.Registry
	store  *memory.Store
	acts   *fakeActivities
}

func newTestEnv(emitter workflow.RunEmitter, mws ...middleware.Middleware) *testEnv {
	s := memory.New()
	reg := workflow.NewRegistry()
	acts := newFakeActivities()
	if emitter == nil {
		emitter = noopEmitter{}
	}
	runner := workflow.NewRunner(reg, s, acts.table(), emitter, testLogger(), mws...)
	return &testEnv{runner: runner, reg: reg, store: s, acts: acts}
}

type result struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// threeSteps validates, generates and delivers, in that order.
func threeSteps(wf *workflow.Workflow, email string) (result, error) {
	if _, err := wf.Invoke(activity.ValidateEmail, fastOpts(2), activity.Input{Email: email}); err != nil {
		return result{}, err
	}
	gen, err := wf.Invoke(activity.GenerateCode, fastOpts(2), activity.Input{})
	if err != nil {
		return result{}, err
	}
	if _, err := wf.Invoke(activity.DeliverCode, fastOpts(3), activity.Input{Email: email, Code: gen.Code}); err != nil {
		return result{}, err
	}
	return result{Message: "sent", Code: gen.Code}, nil
}
