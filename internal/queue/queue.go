package queue

import (
	"context"
	"errors"
)

// DefaultCapacity is the bound used when none is configured.
const DefaultCapacity = 3

// ErrEmpty is returned by TryGet when nothing is queued.
var ErrEmpty = errors.New("queue: empty")

// Queue is a fixed-capacity FIFO shared by one writer and many readers.
type Queue[T any] struct {
	items chan T
}

// New creates a queue holding at most capacity values.
// A non-positive capacity falls back to DefaultCapacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// Put appends v, blocking while the queue is full.
// It only gives up when ctx is done; free space always wins over a done ctx.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	select {
	case q.items <- v:
		return nil
	default:
	}

	select {
	case q.items <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut appends v without blocking and reports whether it fit.
func (q *Queue[T]) TryPut(v T) bool {
	select {
	case q.items <- v:
		return true
	default:
		return false
	}
}

// TryGet removes and returns the head value, or ErrEmpty immediately.
func (q *Queue[T]) TryGet() (T, error) {
	select {
	case v := <-q.items:
		return v, nil
	default:
		var zero T
		return zero, ErrEmpty
	}
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}
