// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
	"github.com/JakeFAU/recipe-importer/internal/worker"
)

// Dispatcher fans out queue work to a fixed pool of workers.
type Dispatcher struct {
	queue   recipe.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher with size workers sharing handler.
func New(queue recipe.Queue, handler worker.Handler, size int, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	workers := make([]*worker.Worker, 0, size)
	for i := range size {
		workers = append(workers, worker.New(i+1, queue, handler, logger))
	}
	return &Dispatcher{queue: queue, workers: workers}
}

// Run starts all workers and blocks until they have all returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item recipe.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}
