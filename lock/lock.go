// Package lock serializes read-check-append sequences on the ledger.
//
// The ledger store only guarantees that a single append is atomic. Anything
// that reads a projection, decides, then appends (placing an order,
// replenishing stock) must hold a lock for the whole sequence or two
// callers can both see the same stock and oversell it.
package lock

import (
	"context"
	"errors"
	"sync"
)

// LedgerKey is the lock key guarding the shared ledger.
const LedgerKey = "ledger"

// ErrNotObtained is returned when a lock could not be acquired before the
// context expired or the retry budget ran out.
var ErrNotObtained = errors.New("lock not obtained")

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive locks by key.
type Locker interface {
	// Obtain blocks until the lock is held or ctx is done.
	Obtain(ctx context.Context, key string) (Lock, error)
}

// =============================================================================
// LOCAL - In-process locker
// =============================================================================

// Local is a Locker for a single process. The zero value is ready to use.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slots == nil {
		l.slots = make(map[string]chan struct{})
	}
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *Local) Obtain(ctx context.Context, key string) (Lock, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &localLock{ch: ch}, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrNotObtained, ctx.Err())
	}
}

type localLock struct {
	once sync.Once
	ch   chan struct{}
}

// Release frees the slot. Releasing twice is a no-op.
func (l *localLock) Release(context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}
