// Package workflow defines workflow definitions, runs, activity steps,
// checkpoints, and the workflow store interface.
package workflow

// Definition is a typed workflow definition with a handler function.
// T is the input type and R the result type; both must be
// JSON-serializable because they are stored on the Run.
type Definition[T, R any] struct {
	// Name is the unique identifier for this workflow type.
	Name string

	// Version distinguishes incompatible revisions of the handler. Runs
	// resume on the version they started with. Zero means 1.
	Version int

	// Handler is the function that executes the workflow logic. It
	// receives a *Workflow whose Invoke method runs activities durably.
	Handler func(wf *Workflow, input T) (R, error)
}

// NewWorkflow creates a typed workflow definition at version 1.
func NewWorkflow[T, R any](name string, handler func(wf *Workflow, input T) (R, error)) *Definition[T, R] {
	return &Definition[T, R]{
		Name:    name,
		Version: 1,
		Handler: handler,
	}
}
