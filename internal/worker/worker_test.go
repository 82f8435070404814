package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/queue/memory"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Process(_ context.Context, jobID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, jobID)
	return h.err
}

func (h *recordingHandler) jobs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func TestWorkerProcessesQueuedJobs(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	handler := &recordingHandler{err: errors.New("handled failure")}
	w := New(1, q, handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Enqueue(ctx, recipe.QueueItem{JobID: "a"}))
	require.NoError(t, q.Enqueue(ctx, recipe.QueueItem{JobID: "b"}))
	require.Eventually(t, func() bool { return len(handler.jobs()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a", "b"}, handler.jobs())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	w := New(1, q, &recordingHandler{}, nil)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}
