// Package closure models an owned environment plus entry function plus
// optional destructor as a value, the way the runtime's spawn APIs consume
// work: whoever holds a Closure exclusively owns its captured environment,
// and handing the closure to a spawn call transfers that ownership to a
// trampoline that guarantees the destructor runs exactly once after the
// entry function returns -- including on panic.
//
// Go's garbage collector already reclaims the memory backing a captured
// environment, so Drop here is for everything else an environment might
// own: a pooled buffer, a reference-counted handle, an open file. The
// arity-specialized constructors (Make0/Make1/Make2) exist because the
// generated call sites this runtime serves always know their argument count
// at the call site and want that checked at compile time rather than
// through a variadic []any.
package closure

import "sync/atomic"

// handoff is the explicit release/acquire pair for the capture-to-trampoline
// ownership transfer described in the runtime's concurrency model: the
// spawner releases after writing every captured value, the trampoline
// acquires before reading any of them. In practice the `go` statement (or
// an equivalent enqueue-then-wake sequence) already establishes this
// happens-before edge, but making it an explicit atomic keeps the invariant
// checkable under the race detector even if a future caller hands the
// trampoline to something that isn't a plain goroutine launch.
type handoff struct {
	ready atomic.Bool
}

func (h *handoff) release() { h.ready.Store(true) }
func (h *handoff) acquire() { _ = h.ready.Load() }

// Closure0 is a zero-argument closure: entry(env), then drop(env) exactly
// once.
type Closure0[E any] struct {
	Env   E
	Entry func(E)
	Drop  func(E)
	h     handoff
}

// Make0 builds a Closure0 from a captured environment, an entry function,
// and an optional drop function (nil if the environment owns nothing that
// needs releasing).
func Make0[E any](env E, entry func(E), drop func(E)) Closure0[E] {
	c := Closure0[E]{Env: env, Entry: entry, Drop: drop}
	c.h.release()
	return c
}

// Call runs Entry(Env) then Drop(Env) exactly once, even if Entry panics.
func (c *Closure0[E]) Call() {
	c.h.acquire()
	defer c.runDrop()
	c.Entry(c.Env)
}

func (c *Closure0[E]) runDrop() {
	if c.Drop != nil {
		// Drop is noexcept by contract: a panicking Drop leaks instead of
		// propagating, matching the runtime's error-handling policy for
		// destructors.
		defer func() { recover() }()
		c.Drop(c.Env)
	}
}

// Trampoline returns a func() suitable for handing to a spawn API. Calling
// the returned function transfers ownership of Env to the call: the
// destructor is guaranteed to run exactly once on the call path, regardless
// of how Entry exits.
func (c Closure0[E]) Trampoline() func() {
	cc := c
	return func() { cc.Call() }
}

// Closure1 is a one-argument closure: entry(env, a), then drop(env).
type Closure1[E, A any] struct {
	Env   E
	Entry func(E, A)
	Drop  func(E)
	h     handoff
}

// Make1 builds a Closure1.
func Make1[E, A any](env E, entry func(E, A), drop func(E)) Closure1[E, A] {
	c := Closure1[E, A]{Env: env, Entry: entry, Drop: drop}
	c.h.release()
	return c
}

// Call runs Entry(Env, a) then Drop(Env) exactly once.
func (c *Closure1[E, A]) Call(a A) {
	c.h.acquire()
	defer c.runDrop()
	c.Entry(c.Env, a)
}

func (c *Closure1[E, A]) runDrop() {
	if c.Drop != nil {
		defer func() { recover() }()
		c.Drop(c.Env)
	}
}

// Trampoline returns a func(A) suitable for handing to a spawn API.
func (c Closure1[E, A]) Trampoline() func(A) {
	cc := c
	return func(a A) { cc.Call(a) }
}

// Closure2 is a two-argument closure: entry(env, a, b), then drop(env).
type Closure2[E, A, B any] struct {
	Env   E
	Entry func(E, A, B)
	Drop  func(E)
	h     handoff
}

// Make2 builds a Closure2.
func Make2[E, A, B any](env E, entry func(E, A, B), drop func(E)) Closure2[E, A, B] {
	c := Closure2[E, A, B]{Env: env, Entry: entry, Drop: drop}
	c.h.release()
	return c
}

// Call runs Entry(Env, a, b) then Drop(Env) exactly once.
func (c *Closure2[E, A, B]) Call(a A, b B) {
	c.h.acquire()
	defer c.runDrop()
	c.Entry(c.Env, a, b)
}

func (c *Closure2[E, A, B]) runDrop() {
	if c.Drop != nil {
		defer func() { recover() }()
		c.Drop(c.Env)
	}
}

// Trampoline returns a func(A, B) suitable for handing to a spawn API.
func (c Closure2[E, A, B]) Trampoline() func(A, B) {
	cc := c
	return func(a A, b B) { cc.Call(a, b) }
}
