package task

import (
	"sync"

	"github.com/sreekotay/ccrt/deadline"
)

// drive spawns a worker per task that blocks on it, standing in for
// "spawn a worker fiber per task in an ephemeral nursery": task sits below
// fiber and nursery in the import graph (see the package doc), so it
// cannot literally spawn scheduled fibers without an import cycle. A Poll
// task only advances when something calls Poll/Block on it, so without a
// driver it would never settle until dl expires; Future/Spawn/Fiber tasks
// already advance on their own and a driver goroutine for one of those is
// just an extra waiter.
func drive[T any](dl deadline.Deadline, tasks []*Task[T]) {
	for _, t := range tasks {
		t := t
		go t.Block(dl)
	}
}

// BlockAll waits for every task to settle, bounded by dl. It returns the
// fulfilled values in input order, or the first rejection error (any
// pending tasks are left running; the caller should Cancel them). An empty
// input resolves immediately with an empty slice.
func BlockAll[T any](dl deadline.Deadline, tasks ...*Task[T]) ([]T, error) {
	if len(tasks) == 0 {
		return []T{}, nil
	}
	drive(dl, tasks)

	results := make([]T, len(tasks))
	var mu sync.Mutex
	completed := 0
	var firstErr error
	done := make(chan struct{})
	var closeOnce sync.Once

	for i, t := range tasks {
		i, t := i, t
		t.onSettle(func(v T, err error, ok bool) {
			mu.Lock()
			if err != nil && firstErr == nil {
				firstErr = err
			} else if ok {
				results[i] = v
			}
			completed++
			n := completed
			mu.Unlock()
			if err != nil || n == len(tasks) {
				closeOnce.Do(func() { close(done) })
			}
		})
	}

	select {
	case <-done:
		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return nil, firstErr
		}
		return results, nil
	case <-dl.Chan():
		return nil, timeoutErr(dl)
	}
}

// BlockRace settles as soon as any one task settles, with that task's
// outcome (success or failure) and its index in the input order. Every
// other task is cancelled before BlockRace returns. An empty input never
// returns until dl expires.
func BlockRace[T any](dl deadline.Deadline, tasks ...*Task[T]) (winner int, value T, err error) {
	drive(dl, tasks)

	done := make(chan struct{})
	var once sync.Once
	winner = -1

	for i, t := range tasks {
		i, t := i, t
		t.onSettle(func(v T, e error, _ bool) {
			once.Do(func() {
				winner, value, err = i, v, e
				close(done)
			})
		})
	}

	select {
	case <-done:
		for i, t := range tasks {
			if i != winner {
				t.Cancel()
			}
		}
		return winner, value, err
	case <-dl.Chan():
		var zero T
		return -1, zero, timeoutErr(dl)
	}
}

// BlockAny settles with the value of the first task to *succeed*. If every
// task rejects (or the input is empty), it returns a zero value and an
// *AllFailedError* satisfying errors.Is(err, ErrCancelled) -- callers that
// only care whether the outcome was a cancellation see exactly that, while
// errors.As(err, &AllFailedError{}) recovers every individual rejection
// reason in input order for diagnostics.
func BlockAny[T any](dl deadline.Deadline, tasks ...*Task[T]) (T, error) {
	if len(tasks) == 0 {
		var zero T
		return zero, &AllFailedError{}
	}
	drive(dl, tasks)

	var mu sync.Mutex
	errs := make([]error, len(tasks))
	rejected := 0
	done := make(chan struct{})
	var closeOnce sync.Once
	var value T
	var resolved bool

	for i, t := range tasks {
		i, t := i, t
		t.onSettle(func(v T, err error, ok bool) {
			mu.Lock()
			if ok && !resolved {
				resolved = true
				value = v
				mu.Unlock()
				closeOnce.Do(func() { close(done) })
				return
			}
			if !ok {
				errs[i] = err
				rejected++
			}
			allRejected := rejected == len(tasks) && !resolved
			mu.Unlock()
			if allRejected {
				closeOnce.Do(func() { close(done) })
			}
		})
	}

	select {
	case <-done:
		mu.Lock()
		defer mu.Unlock()
		if resolved {
			return value, nil
		}
		var zero T
		return zero, &AllFailedError{Errors: errs}
	case <-dl.Chan():
		var zero T
		return zero, timeoutErr(dl)
	}
}
