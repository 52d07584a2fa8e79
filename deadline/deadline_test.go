package deadline

import (
	"testing"
	"time"
)

func TestDeadline_NoneNeverExpires(t *testing.T) {
	d := None()
	if d.Expired() {
		t.Fatal("None() deadline reported expired")
	}
}

func TestDeadline_AfterZeroIsImmediatelyExpired(t *testing.T) {
	d := After(0)
	time.Sleep(time.Millisecond)
	if !d.Expired() {
		t.Fatal("After(0) should be immediately expired")
	}
}

func TestDeadline_MonotonicOnceExpiredStaysExpired(t *testing.T) {
	d := After(10 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if !d.Expired() {
		t.Fatal("expected expired")
	}
	time.Sleep(5 * time.Millisecond)
	if !d.Expired() {
		t.Fatal("expired deadline must remain expired")
	}
}

func TestDeadline_CancelIsIdempotent(t *testing.T) {
	d, cancel := WithCancel(None())
	if d.Expired() {
		t.Fatal("freshly derived deadline should not be expired")
	}
	cancel()
	cancel()
	if !d.Expired() {
		t.Fatal("expected cancelled deadline to report expired")
	}
}

func TestDeadline_CopiesShareNoIndependentState(t *testing.T) {
	a := After(time.Hour)
	b := a
	b2, cancelB := WithCancel(b)
	cancelB()

	if a.Expired() {
		t.Fatal("cancelling a derived copy must not affect the original")
	}
	if !b2.Expired() {
		t.Fatal("the cancelled derivation must report expired")
	}
}
