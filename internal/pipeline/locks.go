package pipeline

import "sync"

// MaterialLocks enforces "a material in a processing state has
// exactly one background task advancing it" (spec §3 invariant) by
// handing out a per-material mutex from a keyed table. It is
// deliberately non-blocking: TryAcquire returns false immediately
// rather than queue, grounded on concurrency_manager.go's
// AcquirePermit pattern but specialized to per-row exclusion instead
// of a shared capacity pool.
type MaterialLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMaterialLocks builds an empty lock table.
func NewMaterialLocks() *MaterialLocks {
	return &MaterialLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *MaterialLocks) lockFor(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// TryAcquire attempts to claim the lock for id, returning false
// immediately if another task already holds it (spec §5: concurrent
// requests targeting the same material get Conflict, not a queue).
func (l *MaterialLocks) TryAcquire(id string) bool {
	return l.lockFor(id).TryLock()
}

// Release frees the lock for id. Must only be called by the holder.
func (l *MaterialLocks) Release(id string) {
	l.lockFor(id).Unlock()
}
