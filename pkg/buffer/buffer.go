// Package buffer provides a blocking bounded FIFO used to hand streamed
// items (message chunks, audio frames) from a producer goroutine to a
// consumer.
package buffer

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

// Sentinel errors.
var (
	// ErrDone is returned by Next once the buffer is drained after CloseWrite.
	ErrDone = errors.New("buffer: done")

	// ErrClosed is the default error for a hard Close.
	ErrClosed = errors.New("buffer: closed")
)

// Buffer is a fixed-capacity circular FIFO. Put blocks while full, Next
// blocks while empty. CloseWrite ends the stream gracefully: pending items
// remain readable and Next returns ErrDone after the last one. CloseWithError
// tears the stream down: both sides unblock with the given error.
type Buffer[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	ring       []T
	head, tail int64
	writeDone  bool
	failure    error
}

// New creates a buffer holding at most capacity items. Capacity must be
// positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("buffer: capacity must be positive")
	}
	b := &Buffer[T]{ring: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Put appends one item, blocking while the buffer is full.
func (b *Buffer[T]) Put(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.failure != nil {
			return fmt.Errorf("buffer: put: %w", b.failure)
		}
		if b.writeDone {
			return fmt.Errorf("buffer: put: %w", ErrClosed)
		}
		if b.tail-b.head < int64(len(b.ring)) {
			break
		}
		b.cond.Wait()
	}
	b.ring[b.tail%int64(len(b.ring))] = v
	b.tail++
	b.cond.Broadcast()
	return nil
}

// Next removes and returns the oldest item, blocking while the buffer is
// empty. After CloseWrite drains, it returns ErrDone. After CloseWithError,
// it returns that error.
func (b *Buffer[T]) Next() (T, error) {
	var zero T
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.head == b.tail {
		if b.failure != nil {
			return zero, fmt.Errorf("buffer: next: %w", b.failure)
		}
		if b.writeDone {
			return zero, ErrDone
		}
		b.cond.Wait()
	}
	i := b.head % int64(len(b.ring))
	v := b.ring[i]
	var cleared T
	b.ring[i] = cleared
	b.head++
	b.cond.Broadcast()
	return v, nil
}

// All iterates remaining items. Iteration ends silently at ErrDone; any
// other terminal error is yielded once with a zero item.
func (b *Buffer[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := b.Next()
			if errors.Is(err, ErrDone) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// CloseWrite marks the end of the stream. Buffered items stay readable.
// Calling it again is a no-op.
func (b *Buffer[T]) CloseWrite() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeDone {
		return
	}
	b.writeDone = true
	b.cond.Broadcast()
}

// CloseWithError fails the stream: blocked producers and consumers unblock
// with err. A nil err means ErrClosed. Only the first call takes effect.
func (b *Buffer[T]) CloseWithError(err error) {
	if err == nil {
		err = ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failure != nil {
		return
	}
	b.failure = err
	b.writeDone = true
	b.cond.Broadcast()
}

// Close is CloseWithError(ErrClosed).
func (b *Buffer[T]) Close() error {
	b.CloseWithError(ErrClosed)
	return nil
}

// Err returns the terminal error set by CloseWithError, or nil.
func (b *Buffer[T]) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failure
}

// Len reports the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.tail - b.head)
}
