// Package queue provides the unbounded FIFO that carries network payloads
// from connection readers to the frame loop.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO with no capacity limit. Producers never
// block; the consumer takes everything pending at once.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	pushed uint64
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.pushed += uint64(len(items))
}

// Drain removes and returns every pending item in arrival order. It never
// blocks and returns nil when the queue is empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	result := q.items
	q.items = make([]T, 0, cap(result))
	return result
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pushed returns the total number of items ever pushed.
func (q *Queue[T]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
