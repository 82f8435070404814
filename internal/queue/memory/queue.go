// Package memory provides the bounded in-process job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = recipe.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch   chan recipe.QueueItem
	done chan struct{}
	once sync.Once
}

// NewQueue constructs a queue holding at most capacity items.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan recipe.QueueItem, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes an item, waiting for space until ctx ends.
func (q *Queue) Enqueue(ctx context.Context, item recipe.QueueItem) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (recipe.QueueItem, error) {
	select {
	case <-ctx.Done():
		return recipe.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return recipe.QueueItem{}, ErrClosed
	case item := <-q.ch:
		return item, nil
	}
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Items still buffered are dropped; their jobs stay
// pending in the job store.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
