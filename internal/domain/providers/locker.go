package providers

import "context"

// Locker grants mutual exclusion per key. Holders of different keys never
// block each other.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ReconcileQueue records providers whose rating aggregate could not be written
type ReconcileQueue interface {
	// Add flags a provider for recomputation
	Add(ctx context.Context, providerID string) error

	// Pop removes and returns up to n flagged providers
	Pop(ctx context.Context, n int) ([]string, error)
}
