// Package locking provides the bounded-wait mutex used for every piece of
// state shared between the acquisition, persistence and sequencing contexts.
// No caller may block indefinitely on shared state; a timed-out acquisition
// is reported to the caller, which skips that cycle's access.
package locking

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// TimedMutex is a mutual-exclusion lock whose Acquire gives up after a fixed
// timeout instead of blocking.
type TimedMutex struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewTimedMutex returns an unlocked mutex with the given acquisition timeout.
func NewTimedMutex(timeout time.Duration) *TimedMutex {
	return &TimedMutex{
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
	}
}

// Acquire takes the lock, waiting at most the configured timeout.
// It reports whether the lock was obtained.
func (m *TimedMutex) Acquire() bool {
	if m.sem.TryAcquire(1) {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	return m.sem.Acquire(ctx, 1) == nil
}

// Release releases the lock. It must only be called after a successful
// Acquire.
func (m *TimedMutex) Release() {
	m.sem.Release(1)
}

// With runs fn under the lock, reporting whether the lock was obtained.
func (m *TimedMutex) With(fn func()) bool {
	if !m.Acquire() {
		return false
	}
	defer m.Release()
	fn()

	return true
}
