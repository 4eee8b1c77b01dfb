package activity

import "errors"

// Failure classifies why an activity failed.
type Failure uint8

const (
	// FailureTransient is a retryable infrastructure failure.
	FailureTransient Failure = iota
	// FailureRejected is a definitive refusal (permanent rejection).
	FailureRejected
	// FailureInvalid is a contract failure caused by malformed input.
	FailureInvalid
)

// String returns the failure type name. The names double as the
// application error types reported to Temporal.
func (f Failure) String() string {
	switch f {
	case FailureRejected:
		return "PermanentRejection"
	case FailureInvalid:
		return "InvalidInput"
	default:
		return "Transient"
	}
}

// ParseFailure is the inverse of Failure.String. Unknown names map to
// FailureTransient.
func ParseFailure(s string) Failure {
	switch s {
	case "PermanentRejection":
		return FailureRejected
	case "InvalidInput":
		return FailureInvalid
	default:
		return FailureTransient
	}
}

// Error is the typed failure returned by activities.
type Error struct {
	Failure Failure
	Op      string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Failure.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(op string, err error) *Error {
	return &Error{Failure: FailureTransient, Op: op, Err: err}
}

// Reject wraps err as a permanent rejection.
func Reject(op string, err error) *Error {
	return &Error{Failure: FailureRejected, Op: op, Err: err}
}

// Invalid wraps err as an input contract failure.
func Invalid(op string, err error) *Error {
	return &Error{Failure: FailureInvalid, Op: op, Err: err}
}

// FailureOf classifies err. Errors that are not *Error, including
// context deadlines, are transient.
func FailureOf(err error) Failure {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Failure
	}
	return FailureTransient
}
