// Package wake provides a single-word futex-style wake primitive.
//
// A Word decouples signalling from any particular lock: a waiter observes a
// sequence number, re-checks an arbitrary condition, and only then parks on
// the OS primitive keyed to that sequence. This is the building block used
// to integrate blocking channel operations and the fiber scheduler's park
// counters without forcing every suspension point through a shared mutex.
package wake

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Spin tuning. These bound the fast-path cost of a wait that is about to be
// satisfied without ever reaching the OS.
const (
	spinCPU   = 64
	spinYield = 16
)

// Word is a single atomic sequence counter plus a waiter count. Every call
// to Wake increments the sequence (release) and, if waiters are present,
// issues an OS wake. Every call to Wait reads the sequence first, then an
// optional caller-supplied condition, then either returns immediately
// (something changed) or parks until woken or the deadline passes.
type Word struct {
	seq     atomic.Uint32
	waiters atomic.Uint32
}

// New returns a ready-to-use Word.
func New() *Word {
	return &Word{}
}

// Seq returns the current sequence number (acquire).
func (w *Word) Seq() uint32 {
	return w.seq.Load()
}

// Waiters returns the number of goroutines currently parked in Wait.
func (w *Word) Waiters() uint32 {
	return w.waiters.Load()
}

// WakeOne increments the sequence and wakes at most one parked waiter.
func (w *Word) WakeOne() {
	w.seq.Add(1)
	if w.waiters.Load() > 0 {
		wakeOne(&w.seq)
	}
}

// WakeAll increments the sequence and wakes every parked waiter.
func (w *Word) WakeAll() {
	w.seq.Add(1)
	if w.waiters.Load() > 0 {
		wakeAll(&w.seq)
	}
}

// Wait blocks while expected == w.Seq() and cond() is still true, for up to
// timeout (zero or negative means block indefinitely). It returns early,
// without blocking, as soon as either the sequence changes or cond reports
// false; callers must always re-check their own condition on return since
// Wait may wake spuriously. The return value reports whether the deadline
// was reached before anything changed.
func (w *Word) Wait(expected uint32, cond func() bool, timeout time.Duration) (timedOut bool) {
	// Phase 1: bounded busy-spin. Cheap if the signal is imminent.
	for i := 0; i < spinCPU; i++ {
		if w.seq.Load() != expected || (cond != nil && !cond()) {
			return false
		}
		procyield()
	}

	// Phase 2: bounded yield-spin. Gives other goroutines/OS threads a
	// chance to run without parking on the OS primitive.
	for i := 0; i < spinYield; i++ {
		if w.seq.Load() != expected || (cond != nil && !cond()) {
			return false
		}
		runtime.Gosched()
	}

	// Phase 3: register as a waiter, re-check (avoids the lost-wakeup
	// race where a Wake happens between our last check and parking), then
	// actually park on the OS primitive keyed to (&seq, expected).
	w.waiters.Add(1)
	defer w.waiters.Add(^uint32(0))

	if w.seq.Load() != expected || (cond != nil && !cond()) {
		return false
	}

	return park(&w.seq, expected, timeout)
}
