package signin

import "github.com/vndocker/pos-AI-community/workflow"

// Workflow names, shared by every executor.
const (
	SignInWorkflow = "SignInWorkflow"
	VerifyWorkflow = "VerifyOTPWorkflow"
)

// NewSignInDefinition returns the sign-in workflow for the local executor.
func NewSignInDefinition(p Policies) *workflow.Definition[Input, Result] {
	return workflow.NewWorkflow(SignInWorkflow, func(wf *workflow.Workflow, in Input) (Result, error) {
		return SignInE(wf, p, in)
	})
}

// NewVerifyDefinition returns the verify workflow for the local executor.
// Expiry is judged at the run's start time so a resumed run decides the
// same way.
func NewVerifyDefinition() *workflow.Definition[VerifyInput, VerifyResult] {
	return workflow.NewWorkflow(VerifyWorkflow, func(wf *workflow.Workflow, in VerifyInput) (VerifyResult, error) {
		return Verify(in, wf.Now()), nil
	})
}

// Register adds both workflows to reg.
func Register(reg *workflow.Registry, p Policies) {
	workflow.RegisterDefinition(reg, NewSignInDefinition(p))
	workflow.RegisterDefinition(reg, NewVerifyDefinition())
}
