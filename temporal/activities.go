package temporal

import (
	"context"
	"errors"

	sdkactivity "go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/signin"
)

// Registrar is the registration surface shared by worker.Worker and the
// SDK's test environment.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options sdkworkflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options sdkactivity.RegisterOptions)
}

// Register adds both workflows and every activity of table to r. Each
// activity is registered under its wire name.
func Register(r Registrar, table *activity.Table, p signin.Policies) {
	wfs := Workflows{Policies: p}
	r.RegisterWorkflowWithOptions(wfs.SignInWorkflow, sdkworkflow.RegisterOptions{Name: signin.SignInWorkflow})
	r.RegisterWorkflowWithOptions(wfs.VerifyWorkflow, sdkworkflow.RegisterOptions{Name: signin.VerifyWorkflow})

	for _, k := range activity.Kinds() {
		r.RegisterActivityWithOptions(wrap(table.Func(k)), sdkactivity.RegisterOptions{Name: k.String()})
	}
}

// wrap adapts an activity to Temporal, turning failures into application
// errors typed by failure class.
func wrap(fn activity.Func) func(ctx context.Context, in activity.Input) (activity.Output, error) {
	return func(ctx context.Context, in activity.Input) (activity.Output, error) {
		out, err := fn(ctx, in)
		if err != nil {
			return out, ApplicationError(err)
		}
		return out, nil
	}
}

// ApplicationError converts an activity error to a Temporal application
// error whose type is the failure class name.
func ApplicationError(err error) error {
	f := activity.FailureOf(err)
	if f == activity.FailureInvalid {
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), f.String(), err)
	}
	return sdktemporal.NewApplicationError(err.Error(), f.String(), err)
}

// FailureOf recovers the failure class of an error returned by an
// activity executed on Temporal.
func FailureOf(err error) activity.Failure {
	var appErr *sdktemporal.ApplicationError
	if errors.As(err, &appErr) {
		return activity.ParseFailure(appErr.Type())
	}
	return activity.FailureTransient
}
