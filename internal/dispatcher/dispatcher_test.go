package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/queue/memory"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

type blockingHandler struct {
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (h *blockingHandler) Process(ctx context.Context, _ string) error {
	n := h.active.Add(1)
	defer h.active.Add(-1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-h.release:
	case <-ctx.Done():
	}
	return nil
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(16)
	handler := &blockingHandler{release: make(chan struct{})}
	d := New(q, handler, 2, zap.NewNop())
	require.Equal(t, 2, d.Size())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	for i := range 5 {
		require.NoError(t, d.Enqueue(ctx, recipe.QueueItem{JobID: fmt.Sprintf("job-%d", i)}))
	}
	require.Eventually(t, func() bool { return handler.active.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return handler.peak.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
	close(handler.release)

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, recipe.QueueItem) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (recipe.QueueItem, error) {
	return recipe.QueueItem{}, recipe.ErrQueueClosed
}

func TestDispatcherEnqueueWrapsErrors(t *testing.T) {
	t.Parallel()

	d := New(&errorQueue{err: errors.New("boom")}, nil, 0, nil)
	err := d.Enqueue(context.Background(), recipe.QueueItem{JobID: "job"})
	require.EqualError(t, err, "queue enqueue: boom")
}
