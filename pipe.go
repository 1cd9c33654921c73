package troupe

import (
	"context"
	"errors"
	"sync"
)

// ErrConsumerGone is returned by Pipe.Send once the consumer half has
// called CloseConsumer.
var ErrConsumerGone = errors.New("troupe: pipe consumer gone")

// Pipe is a bounded, single-producer/single-consumer buffered channel.
// Send suspends while the buffer is full and wakes
// on the next Recv; Recv suspends while empty and wakes on the next Send.
// Send fails only once the consumer half has been closed; Recv yields
// (zero, false) once the producer half has been closed and the buffer has
// drained. Both behaviors ride directly on Go channel semantics — the
// only thing layered on top is the "consumer gone" signal a bare channel
// can't express on its own.
type Pipe[T any] struct {
	ch         chan T
	consumerGone chan struct{}
	closeProducerOnce sync.Once
	closeConsumerOnce sync.Once
}

// NewPipe creates a Pipe with the given buffer capacity.
func NewPipe[T any](capacity int) *Pipe[T] {
	return &Pipe[T]{
		ch:           make(chan T, capacity),
		consumerGone: make(chan struct{}),
	}
}

// Send enqueues v, blocking while the buffer is full. It returns
// ErrConsumerGone if the consumer half has closed, or ctx.Err() if ctx is
// done first.
func (p *Pipe[T]) Send(ctx context.Context, v T) error {
	select {
	case p.ch <- v:
		return nil
	case <-p.consumerGone:
		return ErrConsumerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend attempts a non-blocking enqueue, reporting whether it
// succeeded, for callers that want to observe backpressure themselves
// rather than suspend. The runner and Context use the blocking Send.
func (p *Pipe[T]) TrySend(v T) bool {
	select {
	case p.ch <- v:
		return true
	default:
		return false
	}
}

// Recv dequeues the next value, blocking while the buffer is empty. It
// returns (zero, false) once the producer half has closed and the buffer
// has drained, or if ctx is done first.
func (p *Pipe[T]) Recv(ctx context.Context) (T, bool) {
	select {
	case v, ok := <-p.ch:
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Chan exposes the underlying channel for use in a select statement
// alongside other sources (the Runner multiplexes four such sources).
func (p *Pipe[T]) Chan() <-chan T { return p.ch }

// Len reports the buffer's current occupancy and its fixed capacity.
func (p *Pipe[T]) Len() (int, int) { return len(p.ch), cap(p.ch) }

// CloseProducer closes the producer half. Safe to call more than once.
func (p *Pipe[T]) CloseProducer() {
	p.closeProducerOnce.Do(func() { close(p.ch) })
}

// CloseConsumer closes the consumer half, causing any pending or future
// Send to fail with ErrConsumerGone. Safe to call more than once.
func (p *Pipe[T]) CloseConsumer() {
	p.closeConsumerOnce.Do(func() { close(p.consumerGone) })
}
