package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vndocker/pos-AI-community/ext"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/observability"
	"github.com/vndocker/pos-AI-community/workflow"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestRun() *workflow.Run {
	return &workflow.Run{ID: id.NewRunID(), Name: "SignInWorkflow"}
}

// counts collects every Int64 sum as name → total.
func counts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
				if v, ok := dp.Attributes.Value("workflow"); !ok || v.AsString() != "SignInWorkflow" {
					t.Errorf("%s: workflow attribute = %v", m.Name, v)
				}
			}
		}
	}
	return out
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Hooks(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()
	run := newTestRun()
	boom := errors.New("boom")

	steps := []func() error{
		func() error { return e.OnWorkflowStarted(ctx, run) },
		func() error { return e.OnWorkflowStarted(ctx, run) },
		func() error { return e.OnWorkflowCompleted(ctx, run, time.Second) },
		func() error { return e.OnWorkflowFailed(ctx, run, boom) },
		func() error { return e.OnWorkflowStepCompleted(ctx, run, "1-VerifyBotToken", time.Millisecond) },
		func() error { return e.OnWorkflowStepFailed(ctx, run, "4-DeliverCode", boom) },
		func() error { return e.OnActivityRetrying(ctx, run, "4-DeliverCode", 1, time.Second, boom) },
		func() error { return e.OnActivityRetrying(ctx, run, "4-DeliverCode", 2, 2*time.Second, boom) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("hook %d: %v", i, err)
		}
	}

	want := map[string]int64{
		"posauth.workflow.started":        2,
		"posauth.workflow.completed":      1,
		"posauth.workflow.failed":         1,
		"posauth.workflow.step.completed": 1,
		"posauth.workflow.step.failed":    1,
		"posauth.activity.retried":        2,
	}
	got := counts(t, reader)
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestMetricsExtension_ThroughRegistry(t *testing.T) {
	e, reader := newTestExtension()
	r := ext.NewRegistry(slog.Default())
	r.Register(e)

	ctx := context.Background()
	run := newTestRun()
	r.EmitWorkflowStarted(ctx, run)
	r.EmitWorkflowCompleted(ctx, run, time.Second)

	got := counts(t, reader)
	if got["posauth.workflow.started"] != 1 || got["posauth.workflow.completed"] != 1 {
		t.Errorf("counts = %v", got)
	}
}
