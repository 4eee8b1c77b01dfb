package activity

import "context"

// Input is the argument of every activity. Each kind reads only the
// fields it needs.
type Input struct {
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Output is the result of every activity.
type Output struct {
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"`
}

// Func is the uniform activity signature.
type Func func(ctx context.Context, in Input) (Output, error)

// Table binds each Kind to its implementation.
type Table [kindEnd]Func

// Func returns the function bound to k, or nil.
func (t *Table) Func(k Kind) Func {
	if !k.Valid() {
		return nil
	}
	return t[k]
}

// Call describes one attempt of one activity inside a workflow run. It is
// handed to middleware.
type Call struct {
	RunID       string
	Workflow    string
	Kind        Kind
	Step        int
	Attempt     int
	MaxAttempts int
}
