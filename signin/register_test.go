package signin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/store/memory"
	"github.com/vndocker/pos-AI-community/workflow"
)

type noopEmitter struct{}

func (noopEmitter) EmitStepCompleted(context.Context, *workflow.Run, string, time.Duration) {}
func (noopEmitter) EmitStepFailed(context.Context, *workflow.Run, string, error) {}
func (noopEmitter) EmitActivityRetrying(context.Context, *workflow.Run, string, int, time.Duration, error) {
}
func (noopEmitter) EmitWorkflowStarted(context.Context, *workflow.Run) {}
func (noopEmitter) EmitWorkflowCompleted(context.Context, *workflow.Run, time.Duration) {}
func (noopEmitter) EmitWorkflowFailed(context.Context, *workflow.Run, error) {}

type botStub struct{ ok bool }

func (b botStub) Verify(context.Context, string) (bool, error) { return b.ok, nil }

// mailerFunc adapts a function to activity.Mailer.
type mailerFunc func(ctx context.Context, msg activity.Message) error

func (f mailerFunc) Send(ctx context.Context, msg activity.Message) error { return f(ctx, msg) }

// counted wraps every entry of t with a call counter.
func counted(t *activity.Table) (*activity.Table, *[5]atomic.Int32) {
	var (
		out   activity.Table
		calls [5]atomic.Int32
	)
	for _, k := range activity.Kinds() {
		fn := t.Func(k)
		out[k] = func(ctx context.Context, in activity.Input) (activity.Output, error) {
			calls[k].Add(1)
			return fn(ctx, in)
		}
	}
	return &out, &calls
}

func fastPolicies() signin.Policies {
	fast := func(attempts int, nonRetryable ...activity.Failure) activity.Options {
		return activity.Options{
			Timeout: time.Second,
			Retry: activity.RetryPolicy{
				InitialInterval: time.Millisecond,
				MaxInterval:     4 * time.Millisecond,
				MaxAttempts:     attempts,
				NonRetryable:    nonRetryable,
			},
		}
	}
	return signin.Policies{
		BotCheck:       fast(3, activity.FailureRejected),
		EmailCheck:     fast(2),
		CodeGeneration: fast(2),
		Delivery:       fast(3, activity.FailureRejected),
	}
}

type localEnv struct {
	store  *memory.Store
	reg    *workflow.Registry
	runner *workflow.Runner
	calls  *[5]atomic.Int32
}

func newLocalEnv(mailer activity.Mailer) *localEnv {
	return newLocalEnvOn(memory.New(), mailer)
}

// newLocalEnvOn builds an executor over an existing store, as a restarted
// process would.
func newLocalEnvOn(s *memory.Store, mailer activity.Mailer) *localEnv {
	set := activity.NewSet(botStub{ok: true}, mailer)
	table, calls := counted(set.Table())
	reg := workflow.NewRegistry()
	signin.Register(reg, fastPolicies())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &localEnv{
		store:  s,
		reg:    reg,
		runner: workflow.NewRunner(reg, s, table, noopEmitter{}, logger),
		calls:  calls,
	}
}

func (e *localEnv) signIn(t *testing.T, ctx context.Context, key string) (*workflow.Run, signin.Result) {
	t.Helper()
	run, err := workflow.Start(ctx, e.runner, signin.SignInWorkflow, key,
		signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.State != workflow.RunStateCompleted {
		return run, signin.Result{}
	}
	res, err := workflow.Result[signin.Result](run)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	return run, res
}

func TestLocal_SignInSucceeds(t *testing.T) {
	var sent atomic.Int32
	env := newLocalEnv(mailerFunc(func(context.Context, activity.Message) error {
		sent.Add(1)
		return nil
	}))

	_, res := env.signIn(t, context.Background(), "signin-ok")
	if res.Message != signin.MsgSignInSuccess || len(res.Code) != activity.CodeDigits {
		t.Fatalf("result = %+v", res)
	}
	if sent.Load() != 1 {
		t.Errorf("emails sent = %d, want 1", sent.Load())
	}
}

func TestLocal_DeliveryRecoversWithinBudget(t *testing.T) {
	var attempts atomic.Int32
	env := newLocalEnv(mailerFunc(func(context.Context, activity.Message) error {
		if attempts.Add(1) <= 2 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}))

	_, res := env.signIn(t, context.Background(), "signin-flaky")
	if res.Message != signin.MsgSignInSuccess {
		t.Fatalf("message = %q", res.Message)
	}
	if attempts.Load() != 3 {
		t.Errorf("delivery attempts = %d, want 3", attempts.Load())
	}
}

func TestLocal_DeliveryExhausted(t *testing.T) {
	var attempts atomic.Int32
	env := newLocalEnv(mailerFunc(func(context.Context, activity.Message) error {
		attempts.Add(1)
		return errors.New("dial tcp: connection refused")
	}))

	_, res := env.signIn(t, context.Background(), "signin-down")
	if res.Message != signin.MsgDeliveryFail || res.Code != "" {
		t.Fatalf("result = %+v", res)
	}
	if attempts.Load() != 3 {
		t.Errorf("delivery attempts = %d, want 3", attempts.Load())
	}
}

func TestLocal_ResumeSkipsCompletedChecks(t *testing.T) {
	ctx, crash := context.WithCancel(context.Background())
	env := newLocalEnv(mailerFunc(func(ctx context.Context, _ activity.Message) error {
		crash()
		<-ctx.Done()
		return ctx.Err()
	}))

	run, _ := env.signIn(t, ctx, "signin-crash")
	if run.State != workflow.RunStateRunning {
		t.Fatalf("state after crash = %q, want running", run.State)
	}

	// A new process over the same store, with working delivery.
	var sent atomic.Int32
	restarted := newLocalEnvOn(env.store, mailerFunc(func(context.Context, activity.Message) error {
		sent.Add(1)
		return nil
	}))

	if err := restarted.runner.ResumeAll(context.Background()); err != nil {
		t.Fatalf("ResumeAll: %v", err)
	}

	for _, k := range []activity.Kind{activity.VerifyBotToken, activity.ValidateEmail, activity.GenerateCode} {
		if n := restarted.calls[k].Load(); n != 0 {
			t.Errorf("%s re-invoked %d times on resume", k, n)
		}
	}
	if sent.Load() != 1 {
		t.Errorf("emails sent after resume = %d, want 1", sent.Load())
	}

	stored, err := env.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	res, err := workflow.Result[signin.Result](stored)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Message != signin.MsgSignInSuccess {
		t.Errorf("message = %q", res.Message)
	}
}

func TestLocal_Verify(t *testing.T) {
	env := newLocalEnv(mailerFunc(func(context.Context, activity.Message) error { return nil }))
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		key  string
		in   signin.VerifyInput
		want signin.Status
	}{
		{"verify-ok", signin.VerifyInput{Email: "a@b.co", Code: "123456", Reference: "123456"}, signin.StatusVerified},
		{"verify-bad", signin.VerifyInput{Email: "a@b.co", Code: "000000", Reference: "123456"}, signin.StatusInvalid},
		{"verify-old", signin.VerifyInput{Email: "a@b.co", Code: "123456", Reference: "123456", ExpiresAt: &past}, signin.StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			run, err := workflow.Start(context.Background(), env.runner, signin.VerifyWorkflow, tt.key, tt.in)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			res, err := workflow.Result[signin.VerifyResult](run)
			if err != nil {
				t.Fatalf("Result: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("status = %q, want %q", res.Status, tt.want)
			}
		})
	}
}

// failingCheckpoints wraps a store whose checkpoint reads fail.
type failingCheckpoints struct {
	*memory.Store
}

func (failingCheckpoints) GetCheckpoint(context.Context, id.RunID, string) ([]byte, error) {
	return nil, errors.New("posauth/redis: get checkpoint: connection refused")
}

func TestLocal_StoreFailureFailsRun(t *testing.T) {
	var sent atomic.Int32
	set := activity.NewSet(botStub{ok: true}, mailerFunc(func(context.Context, activity.Message) error {
		sent.Add(1)
		return nil
	}))
	reg := workflow.NewRegistry()
	signin.Register(reg, fastPolicies())
	st := failingCheckpoints{memory.New()}
	runner := workflow.NewRunner(reg, st, set.Table(), noopEmitter{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	run, err := workflow.Start(context.Background(), runner, signin.SignInWorkflow, "signin-store-down",
		signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.State != workflow.RunStateFailed {
		t.Fatalf("state = %q, want failed", run.State)
	}
	if _, err := workflow.Result[signin.Result](run); err == nil {
		t.Fatal("Result of a failed run must be an error")
	}
	if sent.Load() != 0 {
		t.Errorf("emails sent = %d, want 0", sent.Load())
	}
}
