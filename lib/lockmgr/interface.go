package lockmgr

import "context"

// ILockManager manages the per-database writer locks.
type ILockManager interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	// Returns the owner token needed to release the lock.
	Acquire(ctx context.Context, key string) (owner []byte, err error)

	// TryAcquire attempts to take the lock without blocking.
	// Returns ok=false (and no token) if the lock is currently held.
	TryAcquire(key string) (ok bool, owner []byte, err error)

	// Release releases the lock for key if owner matches the token the
	// lock was acquired with. Returns ok=false on an owner mismatch and
	// true if the lock was released or did not exist.
	Release(key string, owner []byte) (ok bool, err error)
}
