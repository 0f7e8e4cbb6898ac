package ingest

import "sync/atomic"

// pipelineLock provides non-blocking lock semantics using atomic operations.
// Only one batch operation (pending run or embedding backfill) may hold the
// pipeline at a time; a second caller fails fast instead of queueing.
type pipelineLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *pipelineLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *pipelineLock) Release() {
	l.state.Store(0)
}
