// Package fiber implements the runtime's global M:N task scheduler: a fixed
// pool of worker goroutines pulling closures off a bounded MPMC run-queue.
// A "fiber" here is the unit of work a worker runs to completion: workers
// are the carriers (akin to OS threads in a native implementation), and a
// fiber that blocks inside a channel or task operation occupies its carrier
// until woken, exactly as a native stackful fiber would occupy its OS
// thread -- there is deliberately no further multiplexing beneath a
// worker, since Go's own goroutine scheduler already supplies that layer
// and re-deriving it would just be re-implementing what the runtime sits
// on top of.
//
// Scheduler doubles as a channel.ParkCounter: sync-mode channel operations
// report Inc/Dec against it so the deadlock heuristic (every worker either
// idle or parked, nothing queued) can be observed from outside.
package fiber

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sreekotay/ccrt/ring"
	"github.com/sreekotay/ccrt/wake"
)

// ErrShuttingDown is returned by Spawn once Shutdown has been called.
var ErrShuttingDown = errors.New("fiber: scheduler is shutting down")

// Stats is a snapshot of a Scheduler's live counters.
type Stats struct {
	Workers   int
	Active    int32
	Sleeping  int32
	Parked    int32
	Queued    int32
	Pending   int32
	Completed int64
}

// Scheduler is the global fiber run-queue plus its fixed worker pool.
type Scheduler struct {
	workers int
	queue   *ring.Ring[func()]

	notEmpty *wake.Word
	notFull  *wake.Word

	active    atomic.Int32
	sleeping  atomic.Int32
	parked    atomic.Int32
	completed atomic.Int64

	shuttingDown atomic.Bool
	stopOnce     sync.Once
	stopCh       chan struct{}
	wg           sync.WaitGroup

	// OnDeadlockSuspected, if set, is invoked (from whichever goroutine
	// notices) when every worker is either idle or parked and the
	// run-queue is empty: every worker that is doing anything at all is
	// stuck waiting, and nothing is left to make progress. It may be
	// called more than once for the same episode; callers that want
	// once-per-episode semantics should debounce (see internal/watchdog).
	OnDeadlockSuspected func(Stats)
}

// New starts a Scheduler with the given worker count and run-queue
// capacity (rounded up to a power of two by the underlying ring).
func New(workers, queueCap int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if queueCap < 1 {
		queueCap = 1
	}
	s := &Scheduler{
		workers:  workers,
		queue:    ring.New[func()](queueCap),
		notEmpty: wake.New(),
		notFull:  wake.New(),
		stopCh:   make(chan struct{}),
	}
	s.sleeping.Store(int32(workers))
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.workerLoop()
	}
	return s
}

// Spawn enqueues fn to run on the worker pool, blocking while the run-queue
// is full. It returns ErrShuttingDown if Shutdown has already been called.
func (s *Scheduler) Spawn(fn func()) error {
	for {
		if s.shuttingDown.Load() {
			return ErrShuttingDown
		}
		if s.queue.TryPush(fn) {
			s.notEmpty.WakeOne()
			return nil
		}
		seq := s.notFull.Seq()
		s.notFull.Wait(seq, func() bool {
			return s.queue.Len() >= s.queue.Cap() && !s.shuttingDown.Load()
		}, waitChunk)
	}
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		fn, ok := s.queue.TryPop()
		if !ok {
			select {
			case <-s.stopCh:
				return
			default:
			}
			seq := s.notEmpty.Seq()
			s.notEmpty.Wait(seq, func() bool { return s.queue.Len() == 0 }, waitChunk)
			continue
		}
		s.notFull.WakeOne()
		s.sleeping.Add(-1)
		s.active.Add(1)
		s.runOne(fn)
		s.active.Add(-1)
		s.sleeping.Add(1)
		s.completed.Add(1)
	}
}

func (s *Scheduler) runOne(fn func()) {
	defer func() { recover() }()
	fn()
}

// Inc implements channel.ParkCounter: a fiber currently counted as active
// is about to block inside a channel operation.
func (s *Scheduler) Inc() {
	s.active.Add(-1)
	s.parked.Add(1)
	s.checkDeadlock()
}

// Dec implements channel.ParkCounter: a previously parked fiber has
// unblocked and resumes running.
func (s *Scheduler) Dec() {
	s.parked.Add(-1)
	s.active.Add(1)
}

func (s *Scheduler) checkDeadlock() {
	if s.OnDeadlockSuspected == nil {
		return
	}
	if s.parked.Load() > 0 && s.active.Load() == 0 && s.queue.Len() == 0 {
		s.OnDeadlockSuspected(s.Stats())
	}
}

// Stats returns a point-in-time snapshot of the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	active := s.active.Load()
	parked := s.parked.Load()
	queued := int32(s.queue.Len())
	return Stats{
		Workers:   s.workers,
		Active:    active,
		Sleeping:  s.sleeping.Load(),
		Parked:    parked,
		Queued:    queued,
		Pending:   active + parked + queued,
		Completed: s.completed.Load(),
	}
}

// Shutdown stops accepting new Spawn calls, waits for the run-queue to
// drain and every worker to go idle, then joins the worker pool. It is
// idempotent.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.shuttingDown.Store(true)
		for {
			st := s.Stats()
			if st.Pending == 0 {
				break
			}
			s.notEmpty.WakeAll()
			s.notFull.WakeAll()
			waitBriefly()
		}
		close(s.stopCh)
		s.notEmpty.WakeAll()
		s.wg.Wait()
	})
}
