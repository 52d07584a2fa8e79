package closure

import (
	"sync/atomic"
	"testing"
)

func TestClosure0_DropRunsExactlyOnce(t *testing.T) {
	var drops atomic.Int32
	var ran bool
	c := Make0(42, func(env int) {
		ran = true
		if env != 42 {
			t.Fatal("wrong env")
		}
	}, func(int) {
		drops.Add(1)
	})

	tr := c.Trampoline()
	tr()

	if !ran {
		t.Fatal("entry did not run")
	}
	if drops.Load() != 1 {
		t.Fatalf("expected exactly 1 drop, got %d", drops.Load())
	}
}

func TestClosure0_DropRunsOnPanic(t *testing.T) {
	var dropped bool
	c := Make0(struct{}{}, func(struct{}) {
		panic("boom")
	}, func(struct{}) {
		dropped = true
	})

	func() {
		defer func() { recover() }()
		c.Call()
	}()

	if !dropped {
		t.Fatal("drop did not run after entry panicked")
	}
}

func TestClosure1_PassesArgument(t *testing.T) {
	var got string
	c := Make1("env", func(env string, a int) {
		got = env
		if a != 7 {
			t.Fatal("wrong arg")
		}
	}, nil)

	c.Trampoline()(7)

	if got != "env" {
		t.Fatal("env not passed through")
	}
}

func TestClosure2_PassesBothArguments(t *testing.T) {
	sum := 0
	c := Make2(0, func(env, a, b int) {
		sum = env + a + b
	}, nil)

	c.Trampoline()(2, 3)

	if sum != 5 {
		t.Fatalf("expected 5, got %d", sum)
	}
}

func TestClosure0_NilDropIsSafe(t *testing.T) {
	c := Make0(1, func(int) {}, nil)
	c.Call() // must not panic
}
