package temporal

import (
	"errors"

	sdktemporal "go.temporal.io/sdk/temporal"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/signin"
)

// Workflows binds the workflow functions to their step policies.
type Workflows struct {
	Policies signin.Policies
}

// SignInWorkflow runs signin.SignInE with activities scheduled on
// Temporal. Activity failures end the run with a message; other errors,
// such as cancellation, fail the workflow.
func (w Workflows) SignInWorkflow(ctx sdkworkflow.Context, in signin.Input) (signin.Result, error) {
	return signin.SignInE(invoker{ctx: ctx}, w.Policies, in)
}

// VerifyWorkflow runs signin.Verify at the workflow's deterministic time.
func (w Workflows) VerifyWorkflow(ctx sdkworkflow.Context, in signin.VerifyInput) (signin.VerifyResult, error) {
	return signin.Verify(in, sdkworkflow.Now(ctx)), nil
}

// invoker implements signin.Runner inside a workflow.
type invoker struct {
	ctx sdkworkflow.Context
}

func (r invoker) Invoke(kind activity.Kind, opts activity.Options, in activity.Input) (activity.Output, error) {
	ctx := sdkworkflow.WithActivityOptions(r.ctx, ActivityOptions(opts))
	var out activity.Output
	err := sdkworkflow.ExecuteActivity(ctx, kind.String(), in).Get(ctx, &out)
	if err == nil {
		return out, nil
	}
	sdkworkflow.GetLogger(r.ctx).Warn("activity failed", "activity", kind.String(), "error", err)

	var actErr *sdktemporal.ActivityError
	if errors.As(err, &actErr) {
		return out, &activity.Error{Failure: FailureOf(err), Op: kind.String(), Err: err}
	}
	return out, err
}

// ActivityOptions converts a step policy to Temporal activity options.
// InvalidInput is always non-retryable.
func ActivityOptions(opts activity.Options) sdkworkflow.ActivityOptions {
	nonRetryable := []string{activity.FailureInvalid.String()}
	for _, f := range opts.Retry.NonRetryable {
		if f != activity.FailureInvalid {
			nonRetryable = append(nonRetryable, f.String())
		}
	}
	return sdkworkflow.ActivityOptions{
		StartToCloseTimeout: opts.Timeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:        opts.Retry.InitialInterval,
			BackoffCoefficient:     2.0,
			MaximumInterval:        opts.Retry.MaxInterval,
			MaximumAttempts:        int32(opts.Retry.Attempts()),
			NonRetryableErrorTypes: nonRetryable,
		},
	}
}
