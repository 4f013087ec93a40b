package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets several engine replicas share one warn ledger without losing increments.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is done.
	// The returned UnlockFunc MUST be called; the lock expires after ttl regardless.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
