// Package executor implements the bounded blocking worker pool used for
// Spawn-variant tasks that are expected to make a genuinely blocking call
// (a syscall, a slow library) rather than cooperate with the fiber
// scheduler's parking protocol. Job submission rides the runtime's own
// channel.Chan, so a full pool backpressures the caller exactly the way any
// other bounded channel does rather than through a separate queue
// implementation.
package executor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sreekotay/ccrt/channel"
	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/internal/metrics"
	"github.com/sreekotay/ccrt/task"
)

// ErrPoolClosed is the rejection error for a Task submitted after Shutdown.
var ErrPoolClosed = errors.New("executor: pool closed")

// PanicError wraps a panic value recovered from a worker's job function, so
// a job that panics rejects its Task instead of taking the worker down.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("executor: job panicked: %v", e.Value)
}

// stat is a Welford online mean/variance accumulator, used to track
// queue-wait and run-time latency without retaining every sample.
type stat struct {
	mu   sync.Mutex
	n    int64
	mean float64
	m2   float64
}

func (s *stat) add(x float64) {
	s.mu.Lock()
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
	s.mu.Unlock()
}

func (s *stat) snapshot() (count int64, mean, std float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, mean = s.n, s.mean
	if s.n > 1 {
		if v := s.m2 / float64(s.n-1); v > 0 {
			std = math.Sqrt(v)
		}
	}
	return
}

// Stats is a snapshot of a Pool's configuration and live counters.
type Stats struct {
	Workers    int
	QueueCap   int
	QueueLen   int
	Submitted  uint64
	Completed  uint64
	Rejected   uint64
	WaitMeanMs float64
	WaitStdMs  float64
	RunMeanMs  float64
	RunStdMs   float64
	RunP50Ms   float64
	RunP99Ms   float64
}

type job[A, R any] struct {
	arg      A
	enqueued time.Time
	resolve  func(R)
	reject   func(error)
}

// Pool is a fixed-size worker pool over jobs of type A -> (R, error).
type Pool[A, R any] struct {
	fn       func(A) (R, error)
	workers  int
	queueCap int
	queue    *channel.Chan[job[A, R]]

	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	waitStat  stat
	runStat   stat
	runQuant  *metrics.MultiQuantile

	wg sync.WaitGroup
}

// New starts a Pool of workers goroutines backed by a queue of capacity
// queueCap, each running fn to completion for every submitted job.
func New[A, R any](fn func(A) (R, error), workers, queueCap int) *Pool[A, R] {
	if workers < 1 {
		workers = 1
	}
	if queueCap < 1 {
		queueCap = 1
	}
	p := &Pool[A, R]{
		fn:       fn,
		workers:  workers,
		queueCap: queueCap,
		queue:    channel.New[job[A, R]](channel.Config{Capacity: queueCap, Mode: channel.Block}),
		runQuant: metrics.NewMultiQuantile(0.5, 0.99),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.workerLoop()
	}
	return p
}

// Submit enqueues arg, blocking while the queue is full, and returns a Task
// that resolves with fn(arg)'s outcome. It rejects immediately (the
// returned Task settles to an error) if the pool has been shut down.
func (p *Pool[A, R]) Submit(arg A) *task.Task[R] {
	tk, resolve, reject := task.New[R](task.Spawn)
	p.submitted.Add(1)
	j := job[A, R]{arg: arg, enqueued: time.Now(), resolve: resolve, reject: reject}
	if r := p.queue.Send(j, deadline.None()); r != channel.Ok {
		p.rejected.Add(1)
		reject(ErrPoolClosed)
	}
	return tk
}

func (p *Pool[A, R]) workerLoop() {
	defer p.wg.Done()
	for {
		var j job[A, R]
		if r := p.queue.Recv(&j, deadline.None()); r != channel.Ok {
			return
		}
		p.waitStat.add(float64(time.Since(j.enqueued)) / float64(time.Millisecond))
		start := time.Now()
		v, err := p.runOne(j.arg)
		runMs := float64(time.Since(start)) / float64(time.Millisecond)
		p.runStat.add(runMs)
		p.runQuant.Observe(runMs)
		p.completed.Add(1)
		if err != nil {
			j.reject(err)
		} else {
			j.resolve(v)
		}
	}
}

func (p *Pool[A, R]) runOne(arg A) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return p.fn(arg)
}

// Stats returns a point-in-time snapshot.
func (p *Pool[A, R]) Stats() Stats {
	_, waitMean, waitStd := p.waitStat.snapshot()
	_, runMean, runStd := p.runStat.snapshot()
	quant := p.runQuant.Snapshot()
	return Stats{
		Workers:    p.workers,
		QueueCap:   p.queueCap,
		QueueLen:   p.queue.Len(),
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Rejected:   p.rejected.Load(),
		WaitMeanMs: waitMean,
		WaitStdMs:  waitStd,
		RunMeanMs:  runMean,
		RunStdMs:   runStd,
		RunP50Ms:   quant[0],
		RunP99Ms:   quant[1],
	}
}

// Shutdown is a two-phase stop: it closes the submission queue (so Submit
// starts rejecting and workers drain whatever was already queued), then
// waits for every worker to exit.
func (p *Pool[A, R]) Shutdown() {
	p.queue.Close()
	p.wg.Wait()
}
