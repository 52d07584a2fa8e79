// Package ring implements a bounded, lock-free, multi-producer/multi-consumer
// queue using the per-slot sequence protocol: each cell carries its own
// sequence counter so a producer and a consumer can claim adjacent
// generations of the same slot without a shared lock.
//
// Each side checks the slot's sequence number (acquire) to see whether the
// slot is free or filled for its position, claims the position by CAS on
// its own cursor (enqueuePos for producers, dequeuePos for consumers), and
// publishes by storing the slot's next sequence number (release).
package ring

import (
	"sync/atomic"
)

type cell[T any] struct {
	seq   atomic.Uint64
	value T
}

// Ring is a bounded MPMC queue. Capacity must be a power of two; New
// rounds up if it is not. Operations are non-blocking: TryPush/TryPop report
// failure on full/empty rather than waiting, so callers that need to block
// compose a Ring with a wake.Word themselves (this is what fiber does).
type Ring[T any] struct {
	mask  uint64
	cells []cell[T]
	_     [0]func() // not copyable

	// Separate cache lines for producer/consumer cursors: under heavy MPMC
	// contention these are independently hot.
	enqueuePos atomic.Uint64
	_          [56]byte
	dequeuePos atomic.Uint64
}

// New creates a ring with the given capacity (rounded up to a power of two,
// minimum 2).
func New[T any](capacity int) *Ring[T] {
	if capacity < 2 {
		capacity = 2
	}
	capacity = nextPow2(capacity)

	r := &Ring[T]{
		mask:  uint64(capacity - 1),
		cells: make([]cell[T], capacity),
	}
	for i := range r.cells {
		r.cells[i].seq.Store(uint64(i))
	}
	return r
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return int(r.mask) + 1
}

// TryPush claims the next slot and stores value, returning false without
// blocking if the ring is full.
func (r *Ring[T]) TryPush(value T) bool {
	var c *cell[T]
	pos := r.enqueuePos.Load()
	for {
		c = &r.cells[pos&r.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				goto claimed
			}
		case diff < 0:
			return false // full
		default:
			pos = r.enqueuePos.Load()
			continue
		}
		pos = r.enqueuePos.Load()
	}
claimed:
	c.value = value
	c.seq.Store(pos + 1)
	return true
}

// TryPop claims the next filled slot and returns its value, returning
// (zero, false) without blocking if the ring is empty.
func (r *Ring[T]) TryPop() (T, bool) {
	var zero T
	var c *cell[T]
	pos := r.dequeuePos.Load()
	for {
		c = &r.cells[pos&r.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if r.dequeuePos.CompareAndSwap(pos, pos+1) {
				goto claimed
			}
		case diff < 0:
			return zero, false // empty
		default:
			pos = r.dequeuePos.Load()
			continue
		}
		pos = r.dequeuePos.Load()
	}
claimed:
	value := c.value
	c.value = zero
	c.seq.Store(pos + uint64(r.Cap()))
	return value, true
}

// Len is a racy, best-effort size estimate. It is intended for stats/metrics
// reporting, never for correctness decisions.
func (r *Ring[T]) Len() int {
	enq := r.enqueuePos.Load()
	deq := r.dequeuePos.Load()
	if enq < deq {
		return 0
	}
	n := int(enq - deq)
	if n < 0 {
		return 0
	}
	if n > r.Cap() {
		return r.Cap()
	}
	return n
}
