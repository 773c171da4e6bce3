// Package spsc provides a wait-free bounded ring for exactly one producer
// goroutine and one consumer goroutine.
package spsc

import "sync/atomic"

const cacheLine = 64

// Queue is a fixed-capacity FIFO. Push may only be called from the producer,
// Front/Pop/Len from the consumer. Neither side blocks or allocates.
type Queue[T any] struct {
	slots []T
	size  uint64

	_         [cacheLine]byte
	head      atomic.Uint64 // next slot to read, written by consumer
	tailCache uint64        // consumer's copy of tail

	_         [cacheLine]byte
	tail      atomic.Uint64 // next slot to write, written by producer
	headCache uint64        // producer's copy of head

	_ [cacheLine]byte
}

// New returns a queue holding at most capacity items.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	// One extra slot distinguishes full from empty.
	return &Queue[T]{
		slots: make([]T, capacity+1),
		size:  uint64(capacity + 1),
	}
}

// Cap reports the maximum number of queued items.
func (q *Queue[T]) Cap() int { return int(q.size - 1) }

// Push copies v into the queue. It returns false when the queue is full.
func (q *Queue[T]) Push(v T) bool {
	tail := q.tail.Load()
	next := tail + 1
	if next == q.size {
		next = 0
	}
	if next == q.headCache {
		q.headCache = q.head.Load()
		if next == q.headCache {
			return false
		}
	}
	q.slots[tail] = v
	q.tail.Store(next)
	return true
}

// Front returns a pointer to the oldest item, or nil if the queue is empty.
// The pointer is valid until the next Pop.
func (q *Queue[T]) Front() *T {
	head := q.head.Load()
	if head == q.tailCache {
		q.tailCache = q.tail.Load()
		if head == q.tailCache {
			return nil
		}
	}
	return &q.slots[head]
}

// Pop discards the oldest item. Call only after Front returned non-nil.
func (q *Queue[T]) Pop() {
	head := q.head.Load()
	var zero T
	q.slots[head] = zero
	next := head + 1
	if next == q.size {
		next = 0
	}
	q.head.Store(next)
}

// Len is an estimate of the number of queued items.
func (q *Queue[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail >= head {
		return int(tail - head)
	}
	return int(q.size - head + tail)
}
