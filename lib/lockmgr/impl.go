package lockmgr

import (
	"bytes"
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// lockEntry is the state of one keyed lock. sem is a counting semaphore
// of capacity one; whoever holds the slot holds the lock.
type lockEntry struct {
	sem   chan struct{}
	mu    sync.Mutex
	owner []byte
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, *lockEntry]
}

// NewLockManager creates a new in-process lock manager.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, *lockEntry](),
	}
}

// entry returns the lock entry for key, creating it on first use.
func (m *lockMgrImpl) entry(key string) *lockEntry {
	e, _ := m.locks.LoadOrCompute(key, func() *lockEntry {
		return &lockEntry{sem: make(chan struct{}, 1)}
	})
	return e
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (m *lockMgrImpl) Acquire(ctx context.Context, key string) ([]byte, error) {
	e := m.entry(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	owner, err := generateOwnerID()
	if err != nil {
		<-e.sem
		return nil, err
	}

	e.mu.Lock()
	e.owner = owner
	e.mu.Unlock()
	return owner, nil
}

func (m *lockMgrImpl) TryAcquire(key string) (bool, []byte, error) {
	e := m.entry(key)

	select {
	case e.sem <- struct{}{}:
	default:
		return false, nil, nil
	}

	owner, err := generateOwnerID()
	if err != nil {
		<-e.sem
		return false, nil, err
	}

	e.mu.Lock()
	e.owner = owner
	e.mu.Unlock()
	return true, owner, nil
}

func (m *lockMgrImpl) Release(key string, owner []byte) (bool, error) {
	e, ok := m.locks.Load(key)
	if !ok {
		return true, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.owner == nil {
		// Lock not held.
		return true, nil
	}
	if !bytes.Equal(e.owner, owner) {
		return false, nil
	}

	e.owner = nil
	<-e.sem
	return true, nil
}
