// Package client is the boundary between the calling layer and an
// executor. An [Orchestrator] starts sign-in and verify runs and awaits
// their terminal outcome; [Local] runs them on the in-process executor
// and package temporal provides a Temporal-backed implementation.
//
// Usage:
//
//	orch := client.NewLocal(runner)
//	res, err := orch.StartSignIn(ctx,
//	    client.RunKey(client.KindSignIn, email, time.Now()),
//	    signin.Input{Email: email, BotToken: token},
//	)
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/vndocker/pos-AI-community/signin"
)

// Orchestrator starts runs by workflow kind and unique run key and waits
// for their result. A run key already in use fails with
// posauth.ErrRunAlreadyExists.
type Orchestrator interface {
	StartSignIn(ctx context.Context, runKey string, in signin.Input) (signin.Result, error)
	StartVerify(ctx context.Context, runKey string, in signin.VerifyInput) (signin.VerifyResult, error)
}

// Kind names a run kind in run keys.
type Kind string

const (
	KindSignIn Kind = "signin"
	KindVerify Kind = "verify"
)

// RunKey builds the run key "{kind}-{email}-{unix-nanos}" so repeated
// requests for the same email at different times get distinct runs.
func RunKey(kind Kind, email string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%d", kind, email, t.UnixNano())
}
