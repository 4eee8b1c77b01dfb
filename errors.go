package posauth

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("posauth: no store configured")
	ErrMigrationFailed = errors.New("posauth: migration failed")

	// Not found errors.
	ErrRunNotFound     = errors.New("posauth: run not found")
	ErrUserNotFound    = errors.New("posauth: user not found")
	ErrAttemptNotFound = errors.New("posauth: otp attempt not found")
	ErrUnknownWorkflow = errors.New("posauth: unknown workflow")

	// Conflict errors.
	ErrRunAlreadyExists = errors.New("posauth: run already exists")
	ErrAttemptUsed      = errors.New("posauth: otp attempt already used")

	// Execution errors.
	ErrRunInterrupted = errors.New("posauth: run interrupted")
	ErrThrottled      = errors.New("posauth: too many sign-in requests")
)
