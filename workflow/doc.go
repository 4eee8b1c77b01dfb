// Package workflow defines typed workflow definitions, runs, durable
// activity steps, and the workflow store interface.
//
// Workflows are straight-line functions over activities. Every activity is
// invoked through [Workflow.Invoke], which applies a timeout and retry
// policy and checkpoints the terminal outcome under a deterministic step
// name. A run interrupted by a crash or shutdown stays in the running
// state; on resume the handler executes again from the top and completed
// steps are replayed from their checkpoints instead of re-running their
// side effects.
//
// # Defining a Workflow
//
//	var Greet = workflow.NewWorkflow("greet",
//	    func(wf *workflow.Workflow, in GreetInput) (GreetResult, error) {
//	        out, err := wf.Invoke(activity.ValidateEmail, opts, activity.Input{Email: in.Email})
//	        if err != nil {
//	            return GreetResult{}, err
//	        }
//	        return GreetResult{OK: out.OK}, nil
//	    },
//	)
//
// # Step Names
//
// The n-th Invoke of a run is checkpointed as "NN:kind", for example
// "01:verify_bot_token". Handlers must therefore issue the same Invoke
// calls in the same order on every execution.
//
// # State Machine
//
// A [Run] moves through these states:
//
//	running → completed
//	running → failed
//
// A run whose context was cancelled mid-step remains running and is picked
// up by [Runner.ResumeAll].
//
// # Key Types
//
//   - [Definition]: typed workflow descriptor with Name, Version and Handler
//   - [Run]: a single workflow execution record, unique by Key
//   - [Checkpoint]: the persisted outcome of one step
//   - [Registry]: maps workflow names to versioned runner functions
package workflow
