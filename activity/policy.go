package activity

import (
	"slices"
	"time"

	"github.com/vndocker/pos-AI-community/backoff"
)

// RetryPolicy governs re-invocation of a failed activity.
type RetryPolicy struct {
	// InitialInterval is the delay after the first failed attempt.
	InitialInterval time.Duration

	// MaxInterval caps the exponential delay.
	MaxInterval time.Duration

	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// NonRetryable lists failure classes that end the step immediately.
	// FailureInvalid is never retried whether listed or not.
	NonRetryable []Failure
}

// Attempts returns the effective attempt budget.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Retryable reports whether err may be retried under this policy.
func (p RetryPolicy) Retryable(err error) bool {
	f := FailureOf(err)
	if f == FailureInvalid {
		return false
	}
	return !slices.Contains(p.NonRetryable, f)
}

// Backoff returns the delay strategy between attempts.
func (p RetryPolicy) Backoff() backoff.Strategy {
	return backoff.NewExponential(p.InitialInterval, p.MaxInterval)
}

// Options is the per-step execution policy.
type Options struct {
	// Timeout bounds a single attempt (start-to-close).
	Timeout time.Duration

	Retry RetryPolicy
}
