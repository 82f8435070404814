// Package worker implements the queue consumption loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Handler processes one dequeued job. It owns retries and terminal
// transitions; the worker only logs what it returns.
type Handler interface {
	Process(ctx context.Context, jobID string) error
}

// Worker consumes queue items and hands them to the handler one at a time.
type Worker struct {
	id      int
	queue   recipe.Queue
	handler Handler
	logger  *zap.Logger
}

// New constructs a Worker.
func New(id int, queue recipe.Queue, handler Handler, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:      id,
		queue:   queue,
		handler: handler,
		logger:  logger.Named("worker").With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, recipe.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		if err := w.handler.Process(ctx, item.JobID); err != nil {
			w.logger.Warn("job processing ended with error",
				zap.String("job_id", item.JobID),
				zap.Error(err))
		}
	}
}
