// Package channel implements typed rendezvous and buffered channels: the
// runtime's primary data-passing primitive between fibers. A Chan[T] is
// either a zero-capacity rendezvous (a send and a matching receive hand a
// value directly from one parked side to the other, with no storage) or a
// buffered ring of up to capacity elements. Close is idempotent and drains
// in FIFO order before Recv starts reporting Closed.
//
// Topology is advisory: it documents the fan-in/fan-out shape a channel was
// built for so callers and diagnostics can reason about it, but every
// topology is served by the same rendezvous/ring machinery underneath --
// there is no separate code path per topology.
package channel

import (
	"sync"

	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/wake"
)

// Result is the outcome of a blocking Send or Recv.
type Result int

const (
	// Ok means the value was transferred (sent, or received into out).
	Ok Result = iota
	// Closed means the channel was closed: Send never queued/handed off
	// the value; Recv found the channel closed with nothing buffered.
	Closed
	// Timeout means the operation's Deadline expired before a transfer
	// could complete.
	Timeout
	// Cancelled means the operation's Deadline was explicitly cancelled
	// (as opposed to merely timing out) before a transfer could complete.
	Cancelled
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Closed:
		return "Closed"
	case Timeout:
		return "Timeout"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Mode governs what a buffered Send does when the buffer is full.
type Mode int

const (
	// Block makes a full-buffer Send wait (subject to its Deadline).
	Block Mode = iota
	// DropOldest makes a full-buffer Send evict the oldest buffered value
	// to make room, never blocking on fullness.
	DropOldest
)

// Topology is an advisory tag describing a channel's intended fan-in/out
// shape. It has no effect on behavior; it exists for callers that want to
// assert or log the shape a channel was built for.
type Topology int

const (
	TopoDefault Topology = iota
	Topo1to1
	Topo1toN
	TopoNto1
	TopoNtoN
)

func (t Topology) String() string {
	switch t {
	case Topo1to1:
		return "1:1"
	case Topo1toN:
		return "1:N"
	case TopoNto1:
		return "N:1"
	case TopoNtoN:
		return "N:N"
	default:
		return "default"
	}
}

// ParkCounter lets a Chan report when an operation on it parks a fiber (as
// opposed to completing immediately), so the scheduler can track
// active/parked carrier counts for its deadlock heuristic. A nil ParkCounter
// disables this accounting -- appropriate for async-mode channels, which
// are not expected to integrate with the fiber scheduler's park gauge.
type ParkCounter interface {
	Inc()
	Dec()
}

type noopParkCounter struct{}

func (noopParkCounter) Inc() {}
func (noopParkCounter) Dec() {}

// Config configures a new Chan.
type Config struct {
	Capacity int
	Mode     Mode
	Topology Topology
	// Sync, when true, reports parks through Parked (the fiber scheduler's
	// park gauge). Async channels never block their caller's accounting.
	Sync   bool
	Parked ParkCounter
}

// rendezvousSlot is one parked side of a capacity-0 handoff: either a
// sender offering a value, or a receiver offering a destination to copy
// into. Exactly one of value/dst is populated depending on which queue the
// slot sits in.
type rendezvousSlot[T any] struct {
	value    T
	dst      *T
	result   Result
	matched  bool
	readySeq uint32
}

// Chan is a typed channel, rendezvous (Capacity 0) or buffered.
type Chan[T any] struct {
	mu       sync.Mutex
	capacity int
	mode     Mode
	topology Topology
	sync     bool
	parked   ParkCounter

	closed bool

	// Buffered ring state (capacity > 0).
	buf        []T
	head, size int

	// Rendezvous queues (capacity == 0).
	senders   []*rendezvousSlot[T]
	receivers []*rendezvousSlot[T]

	notEmpty *wake.Word
	notFull  *wake.Word
}

// New builds a Chan per cfg.
func New[T any](cfg Config) *Chan[T] {
	c := &Chan[T]{
		capacity: cfg.Capacity,
		mode:     cfg.Mode,
		topology: cfg.Topology,
		sync:     cfg.Sync,
		parked:   cfg.Parked,
		notEmpty: wake.New(),
		notFull:  wake.New(),
	}
	if c.parked == nil {
		c.parked = noopParkCounter{}
	}
	if c.capacity > 0 {
		c.buf = make([]T, c.capacity)
	}
	return c
}

// Capacity returns the channel's buffer capacity (0 for rendezvous).
func (c *Chan[T]) Capacity() int { return c.capacity }

// Topology returns the channel's advisory topology tag.
func (c *Chan[T]) Topology() Topology { return c.topology }

// Len returns the number of buffered elements currently held (always 0 for
// a rendezvous channel).
func (c *Chan[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Close idempotently closes the channel. Any senders and receivers
// currently parked are woken with Closed. Previously buffered values remain
// available to Recv until drained; once empty, every subsequent Recv
// returns Closed.
func (c *Chan[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	senders := c.senders
	receivers := c.receivers
	c.senders = nil
	c.receivers = nil
	c.mu.Unlock()

	for _, s := range senders {
		s.result = Closed
		s.matched = true
	}
	for _, r := range receivers {
		r.result = Closed
		r.matched = true
	}
	c.notEmpty.WakeAll()
	c.notFull.WakeAll()
}

// Send transfers value to a receiver (rendezvous) or into the buffer
// (buffered), blocking per Mode and dl as needed.
func (c *Chan[T]) Send(value T, dl deadline.Deadline) Result {
	if c.capacity == 0 {
		return c.sendRendezvous(value, dl)
	}
	return c.sendBuffered(value, dl)
}

// Recv receives a value into *out, blocking as needed.
func (c *Chan[T]) Recv(out *T, dl deadline.Deadline) Result {
	if c.capacity == 0 {
		return c.recvRendezvous(out, dl)
	}
	return c.recvBuffered(out, dl)
}

func deadlineResult(dl deadline.Deadline) Result {
	if dl.Cancelled() {
		return Cancelled
	}
	return Timeout
}

// --- buffered ---

func (c *Chan[T]) pushLocked(v T) {
	idx := (c.head + c.size) % c.capacity
	c.buf[idx] = v
	c.size++
}

func (c *Chan[T]) popLocked() T {
	v := c.buf[c.head]
	var zero T
	c.buf[c.head] = zero
	c.head = (c.head + 1) % c.capacity
	c.size--
	return v
}

func (c *Chan[T]) dropOldestLocked() {
	c.popLocked()
}

func (c *Chan[T]) sendBuffered(value T, dl deadline.Deadline) Result {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Closed
		}
		if c.size < c.capacity {
			c.pushLocked(value)
			c.mu.Unlock()
			c.notEmpty.WakeAll()
			return Ok
		}
		if c.mode == DropOldest {
			c.dropOldestLocked()
			c.pushLocked(value)
			c.mu.Unlock()
			c.notEmpty.WakeAll()
			return Ok
		}
		seq := c.notFull.Seq()
		c.mu.Unlock()

		if dl.Expired() {
			return deadlineResult(dl)
		}

		if c.sync {
			c.parked.Inc()
		}
		c.notFull.Wait(seq, func() bool {
			c.mu.Lock()
			full := !c.closed && c.size >= c.capacity
			c.mu.Unlock()
			return full
		}, waitChunk(dl))
		if c.sync {
			c.parked.Dec()
		}
	}
}

func (c *Chan[T]) recvBuffered(out *T, dl deadline.Deadline) Result {
	for {
		c.mu.Lock()
		if c.size > 0 {
			*out = c.popLocked()
			c.mu.Unlock()
			c.notFull.WakeAll()
			return Ok
		}
		if c.closed {
			c.mu.Unlock()
			return Closed
		}
		seq := c.notEmpty.Seq()
		c.mu.Unlock()

		if dl.Expired() {
			return deadlineResult(dl)
		}

		if c.sync {
			c.parked.Inc()
		}
		c.notEmpty.Wait(seq, func() bool {
			c.mu.Lock()
			empty := !c.closed && c.size == 0
			c.mu.Unlock()
			return empty
		}, waitChunk(dl))
		if c.sync {
			c.parked.Dec()
		}
	}
}

// --- rendezvous ---

func (c *Chan[T]) sendRendezvous(value T, dl deadline.Deadline) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Closed
	}
	if len(c.receivers) > 0 {
		r := c.receivers[0]
		c.receivers = c.receivers[1:]
		*r.dst = value
		r.result = Ok
		r.matched = true
		c.mu.Unlock()
		c.notEmpty.WakeAll()
		return Ok
	}
	slot := &rendezvousSlot[T]{value: value}
	c.senders = append(c.senders, slot)
	c.mu.Unlock()
	c.notEmpty.WakeAll()

	for {
		c.mu.Lock()
		if slot.matched {
			c.mu.Unlock()
			return slot.result
		}
		if c.closed {
			c.mu.Unlock()
			return Closed
		}
		seq := c.notFull.Seq()
		c.mu.Unlock()

		if dl.Expired() {
			if c.removeSender(slot) {
				return deadlineResult(dl)
			}
			// Lost the race with a matching receiver; fall through to
			// report the real outcome.
			c.mu.Lock()
			res := slot.result
			c.mu.Unlock()
			return res
		}

		if c.sync {
			c.parked.Inc()
		}
		c.notFull.Wait(seq, func() bool {
			c.mu.Lock()
			pending := !slot.matched && !c.closed
			c.mu.Unlock()
			return pending
		}, waitChunk(dl))
		if c.sync {
			c.parked.Dec()
		}
	}
}

func (c *Chan[T]) recvRendezvous(out *T, dl deadline.Deadline) Result {
	c.mu.Lock()
	if len(c.senders) > 0 {
		s := c.senders[0]
		c.senders = c.senders[1:]
		*out = s.value
		s.result = Ok
		s.matched = true
		c.mu.Unlock()
		c.notFull.WakeAll()
		return Ok
	}
	if c.closed {
		c.mu.Unlock()
		return Closed
	}
	slot := &rendezvousSlot[T]{dst: out}
	c.receivers = append(c.receivers, slot)
	c.mu.Unlock()
	c.notFull.WakeAll()

	for {
		c.mu.Lock()
		if slot.matched {
			c.mu.Unlock()
			return slot.result
		}
		if c.closed {
			c.mu.Unlock()
			return Closed
		}
		seq := c.notEmpty.Seq()
		c.mu.Unlock()

		if dl.Expired() {
			if c.removeReceiver(slot) {
				return deadlineResult(dl)
			}
			c.mu.Lock()
			res := slot.result
			c.mu.Unlock()
			return res
		}

		if c.sync {
			c.parked.Inc()
		}
		c.notEmpty.Wait(seq, func() bool {
			c.mu.Lock()
			pending := !slot.matched && !c.closed
			c.mu.Unlock()
			return pending
		}, waitChunk(dl))
		if c.sync {
			c.parked.Dec()
		}
	}
}

// removeSender removes slot from the sender queue if it is still there
// (i.e. nobody matched it concurrently). Returns true if it removed it.
func (c *Chan[T]) removeSender(slot *rendezvousSlot[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot.matched {
		return false
	}
	for i, s := range c.senders {
		if s == slot {
			c.senders = append(c.senders[:i], c.senders[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Chan[T]) removeReceiver(slot *rendezvousSlot[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot.matched {
		return false
	}
	for i, r := range c.receivers {
		if r == slot {
			c.receivers = append(c.receivers[:i], c.receivers[i+1:]...)
			return true
		}
	}
	return false
}
