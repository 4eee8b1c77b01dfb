package posauth

import "time"

// Config holds engine-level configuration.
type Config struct {
	// TaskQueue names the queue workflows are dispatched on when a
	// Temporal executor is used.
	TaskQueue string

	// CodeTTL is how long an issued code stays valid.
	CodeTTL time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// ResumeOnStart resumes runs left in "running" state when the engine
	// starts.
	ResumeOnStart bool

	// RunRetention is how long finished runs and their checkpoints are
	// kept. Zero keeps them forever.
	RunRetention time.Duration

	// PruneInterval is how often finished runs older than RunRetention
	// are deleted.
	PruneInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TaskQueue:       "auth-queue",
		CodeTTL:         5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		ResumeOnStart:   true,
		RunRetention:    24 * time.Hour,
		PruneInterval:   time.Hour,
	}
}
