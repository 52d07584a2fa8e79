// Package deadline provides the absolute-time-plus-cancel-flag value type
// used throughout the runtime to bound blocking operations: channel sends
// and receives, task joins, and async I/O waits all accept a Deadline and
// must honor both "already expired at entry" and "expires while waiting".
package deadline

import (
	"sync/atomic"
	"time"
)

// Deadline is an absolute point in time plus an independent cancellation
// flag. A zero-value Deadline never expires. Deadlines are small value
// types: copying one does not share state with the original, except for the
// cancellation flag, which lives on a pointer so that Cancel on one
// composed/derived Deadline is observed by every holder of that same flag
// (this is what lets a Nursery cancel every outstanding wait in one call).
type Deadline struct {
	at        time.Time
	cancelled *atomic.Bool
}

// None returns a Deadline that never expires on its own (it can still be
// cancelled if derived from a cancellable source via WithCancel).
func None() Deadline {
	return Deadline{}
}

// After returns a Deadline that expires at time.Now().Add(d) (or
// immediately, if d <= 0).
func After(d time.Duration) Deadline {
	return Deadline{at: time.Now().Add(d)}
}

// At returns a Deadline that expires at the given absolute time.
func At(t time.Time) Deadline {
	return Deadline{at: t}
}

// WithCancel returns a copy of d that shares a fresh cancellation flag, and
// a function that sets that flag. Calling the returned function more than
// once is a no-op (cancellation is monotonic).
func WithCancel(d Deadline) (Deadline, func()) {
	flag := new(atomic.Bool)
	d.cancelled = flag
	return d, func() { flag.Store(true) }
}

// Expired reports whether d has been cancelled or its absolute time has
// passed. Once true, it remains true: neither the clock nor the
// cancellation flag ever move backwards.
func (d Deadline) Expired() bool {
	if d.cancelled != nil && d.cancelled.Load() {
		return true
	}
	if d.at.IsZero() {
		return false
	}
	return !time.Now().Before(d.at)
}

// Cancelled reports whether d's expiry (if any) is specifically due to an
// explicit Cancel call, as opposed to its absolute time having passed. A
// Deadline that has no cancellation flag always reports false here, even
// once its absolute time has passed -- callers that need to distinguish a
// plain timeout from a cancellation (to return Timeout vs Cancelled from a
// blocking primitive) should check this before falling back to Expired.
func (d Deadline) Cancelled() bool {
	return d.cancelled != nil && d.cancelled.Load()
}

// Cancel sets d's cancellation flag, if it has one (a Deadline obtained
// directly from None/After/At with no WithCancel has nothing to set, and
// Cancel is then a no-op). Idempotent.
func (d Deadline) Cancel() {
	if d.cancelled != nil {
		d.cancelled.Store(true)
	}
}

// Remaining returns the duration until d expires, or 0 if it already has.
// A Deadline with no absolute time (None) reports the largest representable
// duration.
func (d Deadline) Remaining() time.Duration {
	if d.Expired() {
		return 0
	}
	if d.at.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Until(d.at)
}

// Chan returns a channel that closes (or is already closed) at the moment d
// expires. This is the bridge used by blocking primitives that select on a
// deadline alongside other channels; it is not free, so hot paths should
// prefer a direct Expired() poll interleaved with their own wait loop.
func (d Deadline) Chan() <-chan struct{} {
	ch := make(chan struct{})
	if d.Expired() {
		close(ch)
		return ch
	}
	if d.at.IsZero() && d.cancelled == nil {
		return ch // never closes
	}
	go func() {
		defer close(ch)
		if d.at.IsZero() {
			// no absolute time, only a cancel flag: poll it
			t := time.NewTicker(5 * time.Millisecond)
			defer t.Stop()
			for range t.C {
				if d.Expired() {
					return
				}
			}
			return
		}
		timer := time.NewTimer(time.Until(d.at))
		defer timer.Stop()
		if d.cancelled == nil {
			<-timer.C
			return
		}
		poll := time.NewTicker(5 * time.Millisecond)
		defer poll.Stop()
		for {
			select {
			case <-timer.C:
				return
			case <-poll.C:
				if d.cancelled.Load() {
					return
				}
			}
		}
	}()
	return ch
}
