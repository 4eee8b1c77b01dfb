package posauth

import "context"

// Storer is the lifecycle surface every backend exposes. The subsystem
// contracts (workflow.Store, otp.Store) are asserted separately by the
// engine so this package does not import them.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
