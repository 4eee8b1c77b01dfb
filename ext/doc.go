// Package ext defines the extension system for the sign-in engine.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnWorkflowFailed(ctx context.Context, r *workflow.Run, err error) error {
//	    log.Printf("run %s failed: %v", r.ID, err)
//	    return nil
//	}
//
// # Hooks
//
//   - [WorkflowStarted]: a run began
//   - [WorkflowCompleted]: a run finished successfully
//   - [WorkflowFailed]: a run failed terminally
//   - [WorkflowStepCompleted]: an activity step settled with an output
//   - [WorkflowStepFailed]: an activity step failed for good
//   - [ActivityRetrying]: an activity attempt failed and will be retried
//   - [Shutdown]: the engine is shutting down
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Registry satisfies
// workflow.RunEmitter directly.
package ext
