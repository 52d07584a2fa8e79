// Package task implements the runtime's tagged-variant handle for a unit of
// work in flight: a Future (eagerly running to one resolution), a Poll (user
// driven by repeatedly invoking a supplied poll function), a Spawn (running
// on the executor's worker pool) or a Fiber (a structured-concurrency child
// tracked by a nursery). All four share one completion and blocking
// mechanism; Kind exists for diagnostics and for Poll's distinct driving
// mode, not to branch the blocking API.
//
// This package sits below executor and nursery in the import graph: those
// packages build Spawn/Fiber tasks by calling New and driving the returned
// resolve/reject closures from their own worker/child-completion paths,
// rather than task depending on them.
package task

import (
	"sync"
	"sync/atomic"

	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/wake"
)

// Kind tags how a Task is driven to completion.
type Kind int

const (
	Future Kind = iota
	Poll
	Spawn
	Fiber
)

func (k Kind) String() string {
	switch k {
	case Future:
		return "future"
	case Poll:
		return "poll"
	case Spawn:
		return "spawn"
	case Fiber:
		return "fiber"
	default:
		return "unknown"
	}
}

type state int32

const (
	statePending state = iota
	stateFulfilled
	stateRejected
	stateCancelled
)

// Task is a generic handle to a single eventual (value, error) pair.
type Task[T any] struct {
	kind Kind
	w    *wake.Word

	mu      sync.Mutex
	st      atomic.Int32
	value   T
	err     error
	waiters []func(T, error, bool)

	once   sync.Once
	pollFn func() (T, bool, error)
}

func newTask[T any](kind Kind) *Task[T] {
	return &Task[T]{kind: kind, w: wake.New()}
}

// New creates a Task of the given kind and returns it along with the
// resolve/reject closures that drive it to completion. Only the first call
// to either closure has an effect.
func New[T any](kind Kind) (t *Task[T], resolve func(T), reject func(error)) {
	t = newTask[T](kind)
	resolve = func(v T) { t.settle(stateFulfilled, v, nil) }
	reject = func(err error) { t.settle(stateRejected, *new(T), err) }
	return t, resolve, reject
}

// NewPoll builds a Poll-kind Task driven entirely by repeated calls to
// pollFn from Task.Poll: pollFn returns (value, ready, err); once it
// reports ready (or an error), the Task settles and pollFn is never called
// again.
func NewPoll[T any](pollFn func() (T, bool, error)) *Task[T] {
	t := newTask[T](Poll)
	t.pollFn = pollFn
	return t
}

// Kind reports which variant this Task is.
func (t *Task[T]) Kind() Kind { return t.kind }

func (t *Task[T]) settle(s state, v T, err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.value = v
		t.err = err
		t.st.Store(int32(s))
		waiters := t.waiters
		t.waiters = nil
		t.mu.Unlock()

		ok := s == stateFulfilled
		for _, fn := range waiters {
			fn(v, err, ok)
		}
		t.w.WakeAll()
	})
}

// onSettle registers fn to run exactly once, with the Task's outcome: if
// the Task is already settled, fn runs synchronously before onSettle
// returns.
func (t *Task[T]) onSettle(fn func(T, error, bool)) {
	t.mu.Lock()
	if state(t.st.Load()) != statePending {
		v, err, ok := t.value, t.err, state(t.st.Load()) == stateFulfilled
		t.mu.Unlock()
		fn(v, err, ok)
		return
	}
	t.waiters = append(t.waiters, fn)
	t.mu.Unlock()
}

// Ready reports whether the Task has settled (fulfilled, rejected, or
// cancelled). For a Poll-kind Task this does not itself invoke pollFn; use
// Poll for that.
func (t *Task[T]) Ready() bool {
	return state(t.st.Load()) != statePending
}

// Poll performs a single non-blocking check. For non-Poll kinds it just
// reports the current settlement. For a Poll-kind Task, if not yet settled,
// it invokes the user's poll function once and settles the Task if that
// call reports readiness or an error.
func (t *Task[T]) Poll() (value T, ready bool, err error) {
	if s := state(t.st.Load()); s != statePending {
		return t.value, true, t.err
	}
	if t.kind != Poll || t.pollFn == nil {
		return value, false, nil
	}
	v, rdy, perr := t.pollFn()
	if perr != nil {
		t.settle(stateRejected, value, perr)
		return value, true, perr
	}
	if rdy {
		t.settle(stateFulfilled, v, nil)
		return v, true, nil
	}
	return value, false, nil
}

// Cancel transitions the Task to cancelled, if it has not already settled.
// It is a no-op otherwise.
func (t *Task[T]) Cancel() {
	t.settle(stateCancelled, *new(T), ErrCancelled)
}

// Block waits for the Task to settle, bounded by dl. It returns the
// fulfilled value and a nil error on success; the rejection error if the
// Task was rejected or cancelled; or a *TimeoutError if dl expires first.
func (t *Task[T]) Block(dl deadline.Deadline) (T, error) {
	if s := state(t.st.Load()); s != statePending {
		return t.value, t.err
	}

	if t.kind == Poll {
		return t.blockPoll(dl)
	}

	for {
		if s := state(t.st.Load()); s != statePending {
			return t.value, t.err
		}
		if dl.Expired() {
			var zero T
			return zero, timeoutErr(dl)
		}
		seq := t.w.Seq()
		t.w.Wait(seq, func() bool {
			return state(t.st.Load()) == statePending
		}, waitChunk(dl))
	}
}

func (t *Task[T]) blockPoll(dl deadline.Deadline) (T, error) {
	backoff := minPollBackoff
	for {
		if v, ready, err := t.Poll(); ready {
			return v, err
		}
		if dl.Expired() {
			var zero T
			return zero, timeoutErr(dl)
		}
		sleep(backoff)
		if backoff < maxPollBackoff {
			backoff *= 2
		}
	}
}
