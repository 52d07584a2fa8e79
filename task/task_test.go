package task

import (
	"errors"
	"testing"
	"time"

	"github.com/sreekotay/ccrt/deadline"
)

func TestTask_BlockWaitsForResolve(t *testing.T) {
	tk, resolve, _ := New[int](Future)
	go func() {
		time.Sleep(5 * time.Millisecond)
		resolve(42)
	}()
	v, err := tk.Block(deadline.None())
	if err != nil || v != 42 {
		t.Fatalf("got (%v, %v)", v, err)
	}
}

func TestTask_BlockReportsRejection(t *testing.T) {
	tk, _, reject := New[int](Spawn)
	boom := errors.New("boom")
	reject(boom)
	_, err := tk.Block(deadline.None())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestTask_BlockTimesOut(t *testing.T) {
	tk, _, _ := New[int](Fiber)
	_, err := tk.Block(deadline.After(10 * time.Millisecond))
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
}

func TestTask_CancelSettlesOnce(t *testing.T) {
	tk, resolve, _ := New[int](Future)
	tk.Cancel()
	resolve(7) // must be a no-op: already settled
	v, err := tk.Block(deadline.None())
	if !errors.Is(err, ErrCancelled) || v != 0 {
		t.Fatalf("got (%v, %v)", v, err)
	}
}

func TestTask_PollDrivesUserFunction(t *testing.T) {
	calls := 0
	tk := NewPoll(func() (int, bool, error) {
		calls++
		if calls < 3 {
			return 0, false, nil
		}
		return 99, true, nil
	})
	for i := 0; i < 2; i++ {
		if _, ready, _ := tk.Poll(); ready {
			t.Fatal("should not be ready yet")
		}
	}
	v, ready, err := tk.Poll()
	if !ready || err != nil || v != 99 {
		t.Fatalf("got (%v, %v, %v)", v, ready, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	// Further polls must not re-invoke pollFn.
	tk.Poll()
	if calls != 3 {
		t.Fatalf("pollFn invoked after settlement")
	}
}

func TestBlockAll_SucceedsWhenAllResolve(t *testing.T) {
	t1, r1, _ := New[int](Future)
	t2, r2, _ := New[int](Future)
	go r1(1)
	go r2(2)
	vs, err := BlockAll(deadline.After(time.Second), t1, t2)
	if err != nil {
		t.Fatal(err)
	}
	if vs[0] != 1 || vs[1] != 2 {
		t.Fatalf("got %v", vs)
	}
}

func TestBlockAll_FirstErrorWins(t *testing.T) {
	t1, _, rej1 := New[int](Future)
	t2, res2, _ := New[int](Future)
	boom := errors.New("boom")
	go rej1(boom)
	go res2(1)
	_, err := BlockAll(deadline.After(time.Second), t1, t2)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestBlockRace_FirstSettlerWins(t *testing.T) {
	t1, r1, _ := New[int](Future)
	t2, r2, _ := New[int](Future)
	go func() {
		time.Sleep(20 * time.Millisecond)
		r2(2)
	}()
	go r1(1)
	w, v, err := BlockRace(deadline.After(time.Second), t1, t2)
	if err != nil || v != 1 || w != 0 {
		t.Fatalf("got (%v, %v, %v)", w, v, err)
	}
	// The loser must be cancelled once BlockRace returns.
	if _, lerr := t2.Block(deadline.None()); !errors.Is(lerr, ErrCancelled) {
		t.Fatalf("expected t2 to be cancelled, got %v", lerr)
	}
}

func TestBlockAny_ReturnsFirstSuccessDespiteEarlierFailures(t *testing.T) {
	t1, _, rej1 := New[int](Future)
	t2, res2, _ := New[int](Future)
	go rej1(errors.New("fail1"))
	go func() {
		time.Sleep(5 * time.Millisecond)
		res2(5)
	}()
	v, err := BlockAny(deadline.After(time.Second), t1, t2)
	if err != nil || v != 5 {
		t.Fatalf("got (%v, %v)", v, err)
	}
}

func TestBlockAny_AllFailedAggregates(t *testing.T) {
	t1, _, rej1 := New[int](Future)
	t2, _, rej2 := New[int](Future)
	e1, e2 := errors.New("e1"), errors.New("e2")
	rej1(e1)
	rej2(e2)
	_, err := BlockAny(deadline.After(time.Second), t1, t2)
	var agg *AllFailedError
	if !errors.As(err, &agg) {
		t.Fatalf("expected *AllFailedError, got %v", err)
	}
	if len(agg.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(agg.Errors))
	}
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected errors.Is(err, ErrCancelled) to hold for an all-failed outcome, got %v", err)
	}
}
