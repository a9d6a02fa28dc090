package port

import "context"

type ItemLocker interface {
	// Lock blocks until the caller exclusively holds itemID or ctx ends.
	// The returned func releases the lock and is safe to call once.
	Lock(ctx context.Context, itemID int64) (unlock func(), err error)
}

type IdempotencyStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency releases a key whose operation did not commit
	ClearIdempotency(ctx context.Context, key string) error
}
