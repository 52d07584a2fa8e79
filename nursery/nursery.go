// Package nursery implements structured-concurrency scopes: a Nursery owns
// a set of spawned children and a set of channels to close automatically
// when the scope ends, joins all children with first-error-wins semantics,
// and propagates cancellation from a failing child to its siblings via a
// shared Deadline.
//
// A Nursery is deliberately not generic over a child result type -- like
// golang.org/x/sync/errgroup, children report only success-or-error. A
// caller that needs a typed result back from a spawned child pairs the
// spawn with its own task.Task (or a rendezvous channel.Chan) and treats
// the nursery purely as the join/cancel/cleanup scope around it.
package nursery

import (
	"sync"

	"github.com/sreekotay/ccrt/closure"
	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/fiber"
	"github.com/sreekotay/ccrt/task"
)

// Closer is anything a Nursery can be told to close automatically once its
// children have all joined. channel.Chan (and channel.Sender/Receiver)
// satisfy this.
type Closer interface {
	Close()
}

// Nursery is a structured-concurrency scope.
type Nursery struct {
	sched *fiber.Scheduler
	dl    deadline.Deadline
	doCancel func()

	mu       sync.Mutex
	children []*task.Task[struct{}]
	closers  []Closer
	closed   bool

	wg       sync.WaitGroup
	errOnce  sync.Once
	firstErr error
}

// New creates a Nursery whose children run on sched and are bounded by a
// Deadline derived from parent (so Cancel, or a failing child, expires
// every outstanding wait within the scope).
func New(sched *fiber.Scheduler, parent deadline.Deadline) *Nursery {
	dl, cancel := deadline.WithCancel(parent)
	return &Nursery{sched: sched, dl: dl, doCancel: cancel}
}

// Deadline returns the Nursery's governing Deadline, for children to pass
// into blocking channel/task operations so they honor the scope's
// cancellation and time bound.
func (n *Nursery) Deadline() deadline.Deadline { return n.dl }

// SetDeadline tightens the Nursery's governing Deadline to dl (typically
// narrower than the one it was created with). It does not affect
// cancellation already in flight.
func (n *Nursery) SetDeadline(dl deadline.Deadline) {
	derived, cancel := deadline.WithCancel(dl)
	n.mu.Lock()
	n.dl = derived
	n.doCancel = cancel
	n.mu.Unlock()
}

// Cancel cancels the Nursery's Deadline, signalling every outstanding and
// future child operation that passes it along.
func (n *Nursery) Cancel() {
	n.mu.Lock()
	cancel := n.doCancel
	n.mu.Unlock()
	cancel()
}

// Spawn runs fn on the scheduler as a tracked child, passing it the
// Nursery's Deadline. A non-nil return cancels the Nursery (first error
// wins: later errors from other children are recorded on their Task but do
// not replace the one Wait reports) so siblings observe cancellation
// promptly. It returns a Task the caller may also block/poll directly.
func (n *Nursery) Spawn(fn func(dl deadline.Deadline) error) *task.Task[struct{}] {
	tk, resolve, reject := task.New[struct{}](task.Fiber)

	n.mu.Lock()
	n.children = append(n.children, tk)
	n.mu.Unlock()
	n.wg.Add(1)

	err := n.sched.Spawn(func() {
		defer n.wg.Done()
		if err := fn(n.dl); err != nil {
			n.recordError(err)
			reject(err)
			return
		}
		resolve(struct{}{})
	})
	if err != nil {
		n.wg.Done()
		n.recordError(err)
		reject(err)
	}
	return tk
}

// SpawnClosure0 spawns a zero-argument closure as a tracked child of n. Go
// methods cannot carry their own type parameters, so the closure spawn
// helpers are package-level generic functions taking the Nursery explicitly
// rather than Nursery methods.
func SpawnClosure0[E any](n *Nursery, c closure.Closure0[E]) *task.Task[struct{}] {
	return n.Spawn(func(deadline.Deadline) error {
		c.Call()
		return nil
	})
}

// SpawnClosure1 spawns a one-argument closure as a tracked child of n,
// supplying a at call time.
func SpawnClosure1[E, A any](n *Nursery, c closure.Closure1[E, A], a A) *task.Task[struct{}] {
	return n.Spawn(func(deadline.Deadline) error {
		c.Call(a)
		return nil
	})
}

// SpawnClosure2 spawns a two-argument closure as a tracked child of n,
// supplying a and b at call time.
func SpawnClosure2[E, A, B any](n *Nursery, c closure.Closure2[E, A, B], a A, b B) *task.Task[struct{}] {
	return n.Spawn(func(deadline.Deadline) error {
		c.Call(a, b)
		return nil
	})
}

// AddClosingChan registers c to be closed once every spawned child has
// joined (see Wait), in the order registered.
func (n *Nursery) AddClosingChan(c Closer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closers = append(n.closers, c)
}

func (n *Nursery) recordError(err error) {
	n.errOnce.Do(func() {
		n.firstErr = err
		n.Cancel()
	})
}

// Wait blocks until every spawned child has completed, then closes every
// registered Closer (children first, closers after -- so a child that is
// mid-send on a registered channel is never raced with its closure). It
// returns the first error reported by any child, if any.
func (n *Nursery) Wait() error {
	n.wg.Wait()
	n.mu.Lock()
	closers := n.closers
	n.closers = nil
	err := n.firstErr
	n.mu.Unlock()

	for _, c := range closers {
		c.Close()
	}
	return err
}

// Free cancels the Nursery (so any child still running winds down) and
// then waits and cleans up, same as Wait. It is safe to call more than
// once and is the right thing to defer at a scope's exit, including an
// abnormal one (panic unwinding past the Nursery's creation site).
func (n *Nursery) Free() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return n.firstErr
	}
	n.closed = true
	n.mu.Unlock()

	n.Cancel()
	return n.Wait()
}
