package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/activity"
)

// stepRecord is the checkpoint envelope of one activity step. Exactly one
// of Output and Error is set.
type stepRecord struct {
	Output *activity.Output `json:"output,omitempty"`
	Error  *stepError       `json:"error,omitempty"`
}

type stepError struct {
	Failure string `json:"failure"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
}

func newStepError(err error) *stepError {
	var ae *activity.Error
	if errors.As(err, &ae) {
		se := &stepError{Failure: ae.Failure.String(), Op: ae.Op}
		if ae.Err != nil {
			se.Message = ae.Err.Error()
		}
		return se
	}
	return &stepError{Failure: activity.FailureTransient.String(), Message: err.Error()}
}

func (e *stepError) err() error {
	var inner error
	if e.Message != "" {
		inner = errors.New(e.Message)
	}
	return &activity.Error{Failure: activity.ParseFailure(e.Failure), Op: e.Op, Err: inner}
}

// StepName returns the checkpoint name of the n-th activity step.
func StepName(n int, kind activity.Kind) string {
	return fmt.Sprintf("%02d:%s", n, kind)
}

// Invoke runs the activity bound to kind under opts and returns its
// terminal outcome.
//
// Steps are numbered by a per-run counter, so the handler must issue the
// same Invoke calls in the same order on every execution. A step that
// already has a checkpoint is replayed from it. Otherwise the activity is
// attempted up to opts.Retry.MaxAttempts times, each attempt bounded by
// opts.Timeout, and the terminal outcome is checkpointed before it is
// returned.
//
// Activity failures are returned as *activity.Error. If the run's context
// is cancelled, nothing is checkpointed and Invoke returns
// posauth.ErrRunInterrupted; the run can then be resumed. Store failures
// are returned as plain errors.
func (w *Workflow) Invoke(kind activity.Kind, opts activity.Options, in activity.Input) (activity.Output, error) {
	w.step++
	name := StepName(w.step, kind)

	data, err := w.store.GetCheckpoint(w.ctx, w.run.ID, name)
	if err != nil {
		return activity.Output{}, fmt.Errorf("workflow %s: get checkpoint %q: %w", w.run.Name, name, err)
	}
	if data != nil {
		var rec stepRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return activity.Output{}, fmt.Errorf("workflow %s: decode checkpoint %q: %w", w.run.Name, name, err)
		}
		w.logger.Debug("replaying checkpointed step",
			slog.String("run_id", w.run.ID.String()),
			slog.String("step", name),
		)
		if rec.Error != nil {
			return activity.Output{}, rec.Error.err()
		}
		if rec.Output == nil {
			return activity.Output{}, nil
		}
		return *rec.Output, nil
	}

	fn := w.activities.Func(kind)
	if fn == nil {
		return activity.Output{}, fmt.Errorf("workflow %s: no activity bound to %s", w.run.Name, kind)
	}

	start := time.Now()
	out, stepErr := w.attempts(name, kind, fn, opts, in)
	if errors.Is(stepErr, posauth.ErrRunInterrupted) {
		return activity.Output{}, stepErr
	}
	elapsed := time.Since(start)

	// Errors returned by the activity are activity failures.
	var ae *activity.Error
	if stepErr != nil && !errors.As(stepErr, &ae) {
		stepErr = activity.Transient(kind.String(), stepErr)
	}

	rec := stepRecord{Output: &out}
	if stepErr != nil {
		rec = stepRecord{Error: newStepError(stepErr)}
	}
	data, err = json.Marshal(rec)
	if err != nil {
		return activity.Output{}, fmt.Errorf("workflow %s: encode checkpoint %q: %w", w.run.Name, name, err)
	}
	if err := w.store.SaveCheckpoint(w.ctx, w.run.ID, name, data); err != nil {
		return activity.Output{}, fmt.Errorf("workflow %s: save checkpoint %q: %w", w.run.Name, name, err)
	}

	if stepErr != nil {
		w.emitter.EmitStepFailed(w.ctx, w.run, name, stepErr)
		return activity.Output{}, stepErr
	}
	w.emitter.EmitStepCompleted(w.ctx, w.run, name, elapsed)
	return out, nil
}

func (w *Workflow) attempts(name string, kind activity.Kind, fn activity.Func, opts activity.Options, in activity.Input) (activity.Output, error) {
	policy := opts.Retry
	maxAttempts := policy.Attempts()
	strategy := policy.Backoff()

	for attempt := 1; ; attempt++ {
		call := &activity.Call{
			RunID:       w.run.ID.String(),
			Workflow:    w.run.Name,
			Kind:        kind,
			Step:        w.step,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
		}
		out, err := w.attempt(call, fn, opts.Timeout, in)
		if w.ctx.Err() != nil {
			return activity.Output{}, fmt.Errorf("%w: step %s: %w", posauth.ErrRunInterrupted, name, w.ctx.Err())
		}
		if err == nil {
			return out, nil
		}
		if attempt >= maxAttempts || !policy.Retryable(err) {
			return activity.Output{}, err
		}

		delay := strategy.Delay(attempt)
		w.emitter.EmitActivityRetrying(w.ctx, w.run, name, attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return activity.Output{}, fmt.Errorf("%w: step %s: %w", posauth.ErrRunInterrupted, name, w.ctx.Err())
		case <-timer.C:
		}
	}
}

type attemptResult struct {
	out activity.Output
	err error
}

// attempt runs one attempt through the middleware chain. The attempt is
// abandoned when its deadline fires even if the activity ignores ctx.
func (w *Workflow) attempt(call *activity.Call, fn activity.Func, timeout time.Duration, in activity.Input) (activity.Output, error) {
	ctx := w.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: activity.Transient(call.Kind.String(), fmt.Errorf("panic: %v", r))}
			}
		}()
		var out activity.Output
		err := w.chain(ctx, call, func(ctx context.Context) error {
			var fnErr error
			out, fnErr = fn(ctx, in)
			return fnErr
		})
		done <- attemptResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return activity.Output{}, activity.Transient(call.Kind.String(), ctx.Err())
	}
}
