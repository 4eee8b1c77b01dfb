package backoff_test

import (
	"testing"
	"time"

	"github.com/vndocker/pos-AI-community/backoff"
)

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	// Delivery policy: 2s initial, 10s max.
	e := backoff.NewExponential(2*time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CustomCoefficient(t *testing.T) {
	e := &backoff.Exponential{Initial: time.Second, Max: time.Minute, Coefficient: 3}
	if got := e.Delay(3); got != 9*time.Second {
		t.Errorf("Delay(3) = %v, want 9s", got)
	}
}

func TestExponential_ZeroCoefficientDefaultsToTwo(t *testing.T) {
	e := &backoff.Exponential{Initial: time.Second}
	if got := e.Delay(3); got != 4*time.Second {
		t.Errorf("Delay(3) = %v, want 4s", got)
	}
}

func TestExponential_AttemptBelowOne(t *testing.T) {
	e := backoff.NewExponential(time.Second, 5*time.Second)
	if got := e.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want 1s", got)
	}
}

func TestExponential_NoMaxDoesNotOverflow(t *testing.T) {
	e := backoff.NewExponential(time.Second, 0)
	if got := e.Delay(200); got <= 0 {
		t.Errorf("Delay(200) = %v, want positive", got)
	}
}

func TestExponential_ImplementsStrategy(t *testing.T) {
	var _ backoff.Strategy = backoff.NewExponential(time.Second, time.Second)
}
