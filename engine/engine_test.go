package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/engine"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/store/memory"
	"github.com/vndocker/pos-AI-community/workflow"
)

// recorder captures every run lifecycle event it sees.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnWorkflowStarted(context.Context, *workflow.Run) error {
	r.add("started")
	return nil
}

func (r *recorder) OnWorkflowCompleted(context.Context, *workflow.Run, time.Duration) error {
	r.add("completed")
	return nil
}

func (r *recorder) OnActivityRetrying(context.Context, *workflow.Run, string, int, time.Duration, error) error {
	r.add("retrying")
	return nil
}

func (r *recorder) OnShutdown(context.Context) error {
	r.add("shutdown")
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type botStub struct{}

func (botStub) Verify(context.Context, string) (bool, error) { return true, nil }

type mailerFunc func(ctx context.Context, msg activity.Message) error

func (f mailerFunc) Send(ctx context.Context, msg activity.Message) error { return f(ctx, msg) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fastPolicies() signin.Policies {
	p := signin.DefaultPolicies()
	for _, o := range []*activity.Options{&p.BotCheck, &p.EmailCheck, &p.CodeGeneration, &p.Delivery} {
		o.Timeout = time.Second
		o.Retry.InitialInterval = time.Millisecond
		o.Retry.MaxInterval = 2 * time.Millisecond
	}
	return p
}

func TestBuild_NoStore(t *testing.T) {
	if _, err := engine.Build(nil, nil); !errors.Is(err, posauth.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

type lifecycleOnly struct{}

func (lifecycleOnly) Migrate(context.Context) error { return nil }
func (lifecycleOnly) Ping(context.Context) error    { return nil }
func (lifecycleOnly) Close() error                  { return nil }

func TestBuild_StoreMissingContracts(t *testing.T) {
	if _, err := engine.Build(lifecycleOnly{}, nil); err == nil {
		t.Fatal("expected error for store without workflow.Store")
	}
}

func TestEngine_SignInEndToEnd(t *testing.T) {
	var sends atomic.Int32
	set := activity.NewSet(botStub{}, mailerFunc(func(context.Context, activity.Message) error {
		if sends.Add(1) == 1 {
			return errors.New("connection reset")
		}
		return nil
	}))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec := &recorder{}

	eng, err := engine.Build(memory.New(), set.Table(),
		engine.WithLogger(quietLogger()),
		engine.WithPolicies(fastPolicies()),
		engine.WithMeterProvider(mp),
		engine.WithExtension(rec),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	names := eng.Registry().Names()
	if len(names) != 2 {
		t.Fatalf("registered workflows = %v", names)
	}

	res, err := eng.Client().StartSignIn(context.Background(), "signin-e2e",
		signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	if err != nil {
		t.Fatalf("StartSignIn: %v", err)
	}
	if !res.Issued() {
		t.Fatalf("result = %+v", res)
	}

	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := rec.snapshot()
	want := []string{"started", "retrying", "completed", "shutdown"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = true
		}
	}
	for _, name := range []string{
		"posauth.workflow.started",
		"posauth.workflow.completed",
		"posauth.activity.retried",
		"posauth.activity.executions",
		"posauth.activity.duration",
	} {
		if !seen[name] {
			t.Errorf("metric %q not recorded", name)
		}
	}
}

func TestEngine_StartResumesInterruptedRuns(t *testing.T) {
	store := memory.New()

	ctx, crash := context.WithCancel(context.Background())
	crashing := activity.NewSet(botStub{}, mailerFunc(func(ctx context.Context, _ activity.Message) error {
		crash()
		<-ctx.Done()
		return ctx.Err()
	}))
	first, err := engine.Build(store, crashing.Table(), engine.WithLogger(quietLogger()), engine.WithPolicies(fastPolicies()))
	if err != nil {
		t.Fatal(err)
	}
	run, err := workflow.Start(ctx, first.Runner(), signin.SignInWorkflow, "signin-crash",
		signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.State != workflow.RunStateRunning {
		t.Fatalf("state = %q, want running", run.State)
	}

	var sent atomic.Int32
	working := activity.NewSet(botStub{}, mailerFunc(func(context.Context, activity.Message) error {
		sent.Add(1)
		return nil
	}))
	second, err := engine.Build(store, working.Table(), engine.WithLogger(quietLogger()), engine.WithPolicies(fastPolicies()))
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stored, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.State != workflow.RunStateCompleted {
		t.Errorf("state after resume = %q, want completed", stored.State)
	}
	if sent.Load() != 1 {
		t.Errorf("emails sent = %d, want 1", sent.Load())
	}
}

func TestEngine_ResumeDisabled(t *testing.T) {
	cfg := posauth.DefaultConfig()
	cfg.ResumeOnStart = false
	eng, err := engine.Build(memory.New(), nil, engine.WithConfig(cfg), engine.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if eng.Config().ResumeOnStart {
		t.Error("config not applied")
	}
	if eng.OTPStore() == nil || eng.Store() == nil {
		t.Error("stores not exposed")
	}
}

func TestEngine_PruneDropsExpiredRuns(t *testing.T) {
	store := memory.New()
	cfg := posauth.DefaultConfig()
	cfg.RunRetention = time.Hour
	eng, err := engine.Build(store, nil, engine.WithConfig(cfg), engine.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	old := time.Now().UTC().Add(-2 * time.Hour)
	for _, key := range []string{"signin-old", "signin-new"} {
		r := &workflow.Run{
			Entity:    posauth.NewEntity(),
			ID:        id.NewRunID(),
			Key:       key,
			Name:      signin.SignInWorkflow,
			Version:   1,
			State:     workflow.RunStateCompleted,
			StartedAt: old,
		}
		done := time.Now().UTC()
		if key == "signin-old" {
			done = old
		}
		r.CompletedAt = &done
		if err := store.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := eng.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if _, err := store.GetRunByKey(ctx, "signin-old"); !errors.Is(err, posauth.ErrRunNotFound) {
		t.Errorf("old run: err = %v, want ErrRunNotFound", err)
	}
	if _, err := store.GetRunByKey(ctx, "signin-new"); err != nil {
		t.Errorf("new run: %v", err)
	}
}
