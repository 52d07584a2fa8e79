package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/sreekotay/ccrt/deadline"
)

func TestPool_SubmitRunsJobAndResolves(t *testing.T) {
	p := New(func(a int) (int, error) { return a * 2, nil }, 4, 8)
	defer p.Shutdown()

	tk := p.Submit(21)
	v, err := tk.Block(deadline.After(time.Second))
	if err != nil || v != 42 {
		t.Fatalf("got (%v, %v)", v, err)
	}
}

func TestPool_JobErrorRejectsTask(t *testing.T) {
	boom := errors.New("boom")
	p := New(func(int) (int, error) { return 0, boom }, 2, 4)
	defer p.Shutdown()

	_, err := p.Submit(1).Block(deadline.After(time.Second))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPool_PanicBecomesPanicError(t *testing.T) {
	p := New(func(int) (int, error) { panic("kaboom") }, 1, 4)
	defer p.Shutdown()

	_, err := p.Submit(1).Block(deadline.After(time.Second))
	var pe PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
}

func TestPool_StatsTrackSubmittedAndCompleted(t *testing.T) {
	p := New(func(int) (int, error) { return 0, nil }, 2, 8)
	defer p.Shutdown()

	for i := 0; i < 5; i++ {
		p.Submit(i).Block(deadline.After(time.Second))
	}
	st := p.Stats()
	if st.Submitted != 5 || st.Completed != 5 {
		t.Fatalf("got %+v", st)
	}
}

func TestPool_ShutdownRejectsFurtherSubmits(t *testing.T) {
	p := New(func(int) (int, error) { return 0, nil }, 1, 2)
	p.Shutdown()
	_, err := p.Submit(1).Block(deadline.After(time.Second))
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}
