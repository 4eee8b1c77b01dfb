package signin

import (
	"errors"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/activity"
)

// Outcome messages of the sign-in workflow.
const (
	MsgInvalidToken  = "Invalid Turnstile token"
	MsgInvalidEmail  = "Invalid email format"
	MsgGenerateFail  = "Failed to generate OTP"
	MsgDeliveryFail  = "Failed to send OTP email"
	MsgSignInSuccess = "OTP sent successfully"
)

// Runner invokes one activity durably. It is implemented by the local
// executor (*workflow.Workflow) and by the Temporal adapter.
type Runner interface {
	Invoke(kind activity.Kind, opts activity.Options, in activity.Input) (activity.Output, error)
}

// Input starts a sign-in run.
type Input struct {
	Email    string `json:"email"`
	BotToken string `json:"bot_token"`
}

// Result is the terminal outcome of a sign-in run. Code is set only on
// success.
type Result struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Issued reports whether the run produced a code.
func (r Result) Issued() bool { return r.Code != "" }

// Policies holds the per-step execution options of SignIn.
type Policies struct {
	BotCheck       activity.Options
	EmailCheck     activity.Options
	CodeGeneration activity.Options
	Delivery       activity.Options
}

// For returns the options of the step that invokes kind.
func (p Policies) For(kind activity.Kind) activity.Options {
	switch kind {
	case activity.VerifyBotToken:
		return p.BotCheck
	case activity.ValidateEmail:
		return p.EmailCheck
	case activity.GenerateCode:
		return p.CodeGeneration
	case activity.DeliverCode:
		return p.Delivery
	default:
		return activity.Options{}
	}
}

// DefaultPolicies returns the production step policies.
func DefaultPolicies() Policies {
	return Policies{
		BotCheck: activity.Options{
			Timeout: 10 * time.Second,
			Retry: activity.RetryPolicy{
				InitialInterval: time.Second,
				MaxInterval:     5 * time.Second,
				MaxAttempts:     3,
				NonRetryable:    []activity.Failure{activity.FailureRejected},
			},
		},
		EmailCheck: activity.Options{
			Timeout: 5 * time.Second,
			Retry: activity.RetryPolicy{
				InitialInterval: time.Second,
				MaxInterval:     3 * time.Second,
				MaxAttempts:     2,
			},
		},
		CodeGeneration: activity.Options{
			Timeout: 5 * time.Second,
			Retry: activity.RetryPolicy{
				InitialInterval: time.Second,
				MaxInterval:     3 * time.Second,
				MaxAttempts:     2,
			},
		},
		Delivery: activity.Options{
			Timeout: 30 * time.Second,
			Retry: activity.RetryPolicy{
				InitialInterval: 2 * time.Second,
				MaxInterval:     10 * time.Second,
				MaxAttempts:     3,
				NonRetryable:    []activity.Failure{activity.FailureRejected},
			},
		},
	}
}

// SignIn runs the sign-in workflow and always returns a terminal outcome.
func SignIn(r Runner, p Policies, in Input) Result {
	res, _ := SignInE(r, p, in)
	return res
}

// SignInE is SignIn for executors. An activity failure ends the run with
// the step's message. Any other error, such as posauth.ErrRunInterrupted
// or a checkpoint store failure, is returned with the step's message so
// the executor can resume or fail the run instead of reporting a
// business outcome.
func SignInE(r Runner, p Policies, in Input) (Result, error) {
	ok, err := r.Invoke(activity.VerifyBotToken, p.BotCheck, activity.Input{Token: in.BotToken})
	if fatal(err) {
		return Result{Message: MsgInvalidToken}, err
	}
	if err != nil || !ok.OK {
		return Result{Message: MsgInvalidToken}, nil
	}

	ok, err = r.Invoke(activity.ValidateEmail, p.EmailCheck, activity.Input{Email: in.Email})
	if fatal(err) {
		return Result{Message: MsgInvalidEmail}, err
	}
	if err != nil || !ok.OK {
		return Result{Message: MsgInvalidEmail}, nil
	}

	gen, err := r.Invoke(activity.GenerateCode, p.CodeGeneration, activity.Input{})
	if fatal(err) {
		return Result{Message: MsgGenerateFail}, err
	}
	if err != nil || gen.Code == "" {
		return Result{Message: MsgGenerateFail}, nil
	}

	sent, err := r.Invoke(activity.DeliverCode, p.Delivery, activity.Input{Email: in.Email, Code: gen.Code})
	if fatal(err) {
		return Result{Message: MsgDeliveryFail}, err
	}
	if err != nil || !sent.OK {
		return Result{Message: MsgDeliveryFail}, nil
	}

	return Result{Message: MsgSignInSuccess, Code: gen.Code}, nil
}

// fatal reports whether err is something other than an activity failure.
func fatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, posauth.ErrRunInterrupted) {
		return true
	}
	var ae *activity.Error
	return !errors.As(err, &ae)
}
