// Package backoff computes the delay between activity retry attempts.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"time"
)

// DefaultCoefficient is the growth factor used when none is configured.
const DefaultCoefficient = 2.0

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait after failed attempt n (1-indexed)
	// before starting attempt n+1.
	Delay(attempt int) time.Duration
}

// Exponential grows the delay geometrically.
// Delay = min(Initial * Coefficient^(attempt-1), Max).
type Exponential struct {
	Initial     time.Duration
	Max         time.Duration
	Coefficient float64
}

// NewExponential creates an exponential strategy with the default
// coefficient of 2.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Coefficient: DefaultCoefficient}
}

// Delay returns Initial * Coefficient^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	coeff := e.Coefficient
	if coeff < 1 {
		coeff = DefaultCoefficient
	}
	d := float64(e.Initial) * math.Pow(coeff, float64(attempt-1))
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
