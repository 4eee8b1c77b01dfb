package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vndocker/pos-AI-community/ext"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*MetricsExtension)(nil)
	_ ext.WorkflowStarted       = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted     = (*MetricsExtension)(nil)
	_ ext.WorkflowFailed        = (*MetricsExtension)(nil)
	_ ext.WorkflowStepCompleted = (*MetricsExtension)(nil)
	_ ext.WorkflowStepFailed    = (*MetricsExtension)(nil)
	_ ext.ActivityRetrying      = (*MetricsExtension)(nil)
)

const meterName = "github.com/vndocker/pos-AI-community/observability"

// MetricsExtension records lifecycle counters. Every counter carries a
// "workflow" attribute with the run's workflow name.
//
// Instruments:
//   - posauth.workflow.started
//   - posauth.workflow.completed
//   - posauth.workflow.failed
//   - posauth.workflow.step.completed
//   - posauth.workflow.step.failed
//   - posauth.activity.retried
type MetricsExtension struct {
	WorkflowStarted   metric.Int64Counter
	WorkflowCompleted metric.Int64Counter
	WorkflowFailed    metric.Int64Counter
	StepCompleted     metric.Int64Counter
	StepFailed        metric.Int64Counter
	ActivityRetried   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	return &MetricsExtension{
		WorkflowStarted:   counter(meter, "posauth.workflow.started", "Workflow runs started"),
		WorkflowCompleted: counter(meter, "posauth.workflow.completed", "Workflow runs completed"),
		WorkflowFailed:    counter(meter, "posauth.workflow.failed", "Workflow runs failed"),
		StepCompleted:     counter(meter, "posauth.workflow.step.completed", "Activity steps completed"),
		StepFailed:        counter(meter, "posauth.workflow.step.failed", "Activity steps failed"),
		ActivityRetried:   counter(meter, "posauth.activity.retried", "Activity attempts retried"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func workflowAttr(r *workflow.Run) metric.AddOption {
	return metric.WithAttributes(attribute.String("workflow", r.Name))
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (m *MetricsExtension) OnWorkflowStarted(ctx context.Context, r *workflow.Run) error {
	m.WorkflowStarted.Add(ctx, 1, workflowAttr(r))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(ctx context.Context, r *workflow.Run, _ time.Duration) error {
	m.WorkflowCompleted.Add(ctx, 1, workflowAttr(r))
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(ctx context.Context, r *workflow.Run, _ error) error {
	m.WorkflowFailed.Add(ctx, 1, workflowAttr(r))
	return nil
}

// OnWorkflowStepCompleted implements ext.WorkflowStepCompleted.
func (m *MetricsExtension) OnWorkflowStepCompleted(ctx context.Context, r *workflow.Run, _ string, _ time.Duration) error {
	m.StepCompleted.Add(ctx, 1, workflowAttr(r))
	return nil
}

// OnWorkflowStepFailed implements ext.WorkflowStepFailed.
func (m *MetricsExtension) OnWorkflowStepFailed(ctx context.Context, r *workflow.Run, _ string, _ error) error {
	m.StepFailed.Add(ctx, 1, workflowAttr(r))
	return nil
}

// OnActivityRetrying implements ext.ActivityRetrying.
func (m *MetricsExtension) OnActivityRetrying(ctx context.Context, r *workflow.Run, _ string, _ int, _ time.Duration, _ error) error {
	m.ActivityRetried.Add(ctx, 1, workflowAttr(r))
	return nil
}
