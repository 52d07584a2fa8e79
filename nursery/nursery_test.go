package nursery

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sreekotay/ccrt/channel"
	"github.com/sreekotay/ccrt/closure"
	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/fiber"
)

func TestNursery_WaitJoinsAllChildren(t *testing.T) {
	sched := fiber.New(4, 16)
	defer sched.Shutdown()

	n := New(sched, deadline.None())
	var done atomic.Int32
	for i := 0; i < 5; i++ {
		n.Spawn(func(deadline.Deadline) error {
			done.Add(1)
			return nil
		})
	}
	if err := n.Wait(); err != nil {
		t.Fatal(err)
	}
	if done.Load() != 5 {
		t.Fatalf("expected 5 children to run, got %d", done.Load())
	}
}

func TestNursery_FirstErrorWins(t *testing.T) {
	sched := fiber.New(4, 16)
	defer sched.Shutdown()

	n := New(sched, deadline.None())
	boom := errors.New("boom")
	n.Spawn(func(deadline.Deadline) error { return nil })
	n.Spawn(func(deadline.Deadline) error { return boom })
	err := n.Wait()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNursery_FailingChildCancelsSiblings(t *testing.T) {
	sched := fiber.New(4, 16)
	defer sched.Shutdown()

	n := New(sched, deadline.None())
	boom := errors.New("boom")
	started := make(chan struct{})
	n.Spawn(func(deadline.Deadline) error { return boom })
	n.Spawn(func(dl deadline.Deadline) error {
		close(started)
		<-dl.Chan()
		if !dl.Cancelled() {
			t.Error("sibling's deadline should have been cancelled")
		}
		return nil
	})
	<-started
	if err := n.Wait(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNursery_AddClosingChanClosesAfterChildrenJoin(t *testing.T) {
	sched := fiber.New(2, 16)
	defer sched.Shutdown()

	n := New(sched, deadline.None())
	ch := channel.New[int](channel.Config{Capacity: 1})
	var sent atomic.Bool
	n.Spawn(func(deadline.Deadline) error {
		time.Sleep(5 * time.Millisecond)
		ch.Send(1, deadline.None())
		sent.Store(true)
		return nil
	})
	n.AddClosingChan(ch)

	if err := n.Wait(); err != nil {
		t.Fatal(err)
	}
	if !sent.Load() {
		t.Fatal("child should have completed before the channel was closed")
	}
	var out int
	ch.Recv(&out, deadline.None())
	if r := ch.Recv(&out, deadline.None()); r != channel.Closed {
		t.Fatalf("expected channel closed after Wait, got %v", r)
	}
}

func TestNursery_SpawnClosure0RunsAndTracks(t *testing.T) {
	sched := fiber.New(2, 16)
	defer sched.Shutdown()

	n := New(sched, deadline.None())
	var ran bool
	c := closure.Make0(&ran, func(p *bool) { *p = true }, nil)
	tk := SpawnClosure0(n, c)
	n.Wait()
	if _, err := tk.Block(deadline.None()); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("closure did not run")
	}
}

func TestNursery_FreeCancelsAndJoins(t *testing.T) {
	sched := fiber.New(2, 16)
	defer sched.Shutdown()

	n := New(sched, deadline.None())
	observed := make(chan bool, 1)
	n.Spawn(func(dl deadline.Deadline) error {
		<-dl.Chan()
		observed <- dl.Cancelled()
		return nil
	})
	if err := n.Free(); err != nil {
		t.Fatal(err)
	}
	if !<-observed {
		t.Fatal("expected Free to cancel the nursery's deadline")
	}
	// Idempotent.
	if err := n.Free(); err != nil {
		t.Fatal(err)
	}
}
