package channel

import "github.com/sreekotay/ccrt/deadline"

// Sender is a send-only handle onto a Chan, returned by Pair for topologies
// that want to hand out directional ends rather than the full Chan.
type Sender[T any] struct {
	ch *Chan[T]
}

func (s Sender[T]) Send(value T, dl deadline.Deadline) Result { return s.ch.Send(value, dl) }
func (s Sender[T]) Close()                                    { s.ch.Close() }

// Receiver is a receive-only handle onto a Chan.
type Receiver[T any] struct {
	ch *Chan[T]
}

func (r Receiver[T]) Recv(out *T, dl deadline.Deadline) Result { return r.ch.Recv(out, dl) }
func (r Receiver[T]) Close()                                   { r.ch.Close() }

// Pair builds a Chan per cfg and returns its directional ends. Closing
// either end closes the underlying channel for both.
func Pair[T any](cfg Config) (Sender[T], Receiver[T]) {
	ch := New[T](cfg)
	return Sender[T]{ch: ch}, Receiver[T]{ch: ch}
}
