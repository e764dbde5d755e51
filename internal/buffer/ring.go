// Package buffer connects the acquisition and persistence contexts with a
// bounded sample FIFO. The producer and consumer sides are guarded by
// separate bounded-wait locks so that neither context can stall the other;
// a full buffer drops the incoming sample rather than overwriting or
// blocking.
package buffer

import (
	"sync/atomic"
	"time"

	"codeberg.org/mkrell/relayctl/internal/locking"
)

// Sample is one raw acquisition record. It is written once by the
// acquisition worker and consumed once by the persistence worker.
type Sample struct {
	Timestamp  time.Time
	CurrentMA  float64
	BridgeCode int16
	AuxCode    int16
	Level      int
}

// Ring is a single-producer single-consumer circular FIFO.
type Ring struct {
	slots []Sample
	size  int64

	head atomic.Int64 // next write index, producer-owned
	tail atomic.Int64 // next read index, consumer-owned

	pushMu *locking.TimedMutex
	popMu  *locking.TimedMutex

	dropped atomic.Int64
}

// NewRing returns an empty ring holding up to capacity samples. lockTimeout
// bounds every Push and PopBatch wait.
func NewRing(capacity int, lockTimeout time.Duration) *Ring {
	return &Ring{
		slots:  make([]Sample, capacity),
		size:   int64(capacity),
		pushMu: locking.NewTimedMutex(lockTimeout),
		popMu:  locking.NewTimedMutex(lockTimeout),
	}
}

// Push appends s, reporting whether it was stored. A full buffer or a
// producer-lock timeout drops the sample and increments the drop counter.
func (r *Ring) Push(s Sample) bool {
	if !r.pushMu.Acquire() {
		r.dropped.Add(1)
		return false
	}
	defer r.pushMu.Release()

	head := r.head.Load()
	if head-r.tail.Load() >= r.size {
		r.dropped.Add(1)
		return false
	}

	r.slots[head%r.size] = s
	r.head.Store(head + 1)

	return true
}

// PopBatch moves up to len(dst) samples into dst in FIFO order and returns
// how many were moved. A consumer-lock timeout moves nothing.
func (r *Ring) PopBatch(dst []Sample) int {
	if len(dst) == 0 {
		return 0
	}
	if !r.popMu.Acquire() {
		return 0
	}
	defer r.popMu.Release()

	tail := r.tail.Load()
	avail := r.head.Load() - tail
	n := int64(len(dst))
	if avail < n {
		n = avail
	}

	for i := int64(0); i < n; i++ {
		dst[i] = r.slots[(tail+i)%r.size]
	}
	r.tail.Store(tail + n)

	return int(n)
}

// Len returns the current depth. It takes no lock and is for informational
// display only, never for control decisions.
func (r *Ring) Len() int {
	n := r.head.Load() - r.tail.Load()
	if n < 0 {
		n = 0
	}
	if n > r.size {
		n = r.size
	}

	return int(n)
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return int(r.size)
}

// Dropped returns how many samples were discarded by Push.
func (r *Ring) Dropped() int64 {
	return r.dropped.Load()
}

// Reset empties the ring and clears the drop counter. It must only be
// called while both workers are stopped.
func (r *Ring) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
	r.dropped.Store(0)
}
