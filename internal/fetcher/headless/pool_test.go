package headless

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

type fakeSession struct {
	id     int
	render func(ctx context.Context, url string) (recipe.RenderedPage, error)
	closed atomic.Bool
}

func (s *fakeSession) Render(ctx context.Context, url string) (recipe.RenderedPage, error) {
	if s.render != nil {
		return s.render(ctx, url)
	}
	return recipe.RenderedPage{URL: url, StatusCode: 200, HTML: "<html></html>"}, nil
}

func (s *fakeSession) Close() { s.closed.Store(true) }

type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	render   func(ctx context.Context, url string) (recipe.RenderedPage, error)
	err      error
}

func (f *fakeFactory) New() (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{id: len(f.sessions), render: f.render}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func TestNewPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPool(0, (&fakeFactory{}).New, nil)
	require.Error(t, err)
	_, err = NewPool(1, nil, nil)
	require.Error(t, err)
}

func TestPoolReusesHealthySessions(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	pool, err := NewPool(1, factory.New, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	for i := 0; i < 3; i++ {
		page, err := pool.Render(context.Background(), "https://example.com", time.Second)
		require.NoError(t, err)
		require.Equal(t, "https://example.com", page.URL)
	}
	require.Equal(t, 1, factory.created())
}

func TestPoolRecyclesFailedSessions(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{render: func(context.Context, string) (recipe.RenderedPage, error) {
		return recipe.RenderedPage{}, errors.New("tab crashed")
	}}
	pool, err := NewPool(1, factory.New, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Render(context.Background(), "https://example.com", time.Second)
	require.Equal(t, recipe.CodeRenderError, recipe.CodeOf(err))
	require.True(t, recipe.IsRetryable(err))

	_, err = pool.Render(context.Background(), "https://example.com", time.Second)
	require.Error(t, err)
	require.Equal(t, 2, factory.created())
	require.True(t, factory.sessions[0].closed.Load())
}

func TestPoolLeasesAreExclusive(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	factory := &fakeFactory{render: func(_ context.Context, url string) (recipe.RenderedPage, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return recipe.RenderedPage{URL: url}, nil
	}}
	pool, err := NewPool(2, factory.New, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Render(context.Background(), "https://example.com", time.Second)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
	require.LessOrEqual(t, factory.created(), 2)
}

func TestPoolTimeoutDiscardsSession(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{render: func(ctx context.Context, _ string) (recipe.RenderedPage, error) {
		<-ctx.Done()
		return recipe.RenderedPage{}, ctx.Err()
	}}
	pool, err := NewPool(1, factory.New, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Render(context.Background(), "https://slow.example.com", 20*time.Millisecond)
	require.Equal(t, recipe.CodeRenderError, recipe.CodeOf(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, factory.sessions[0].closed.Load())
}

func TestPoolLeaseWaitHonorsTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	factory := &fakeFactory{render: func(_ context.Context, url string) (recipe.RenderedPage, error) {
		<-release
		return recipe.RenderedPage{URL: url}, nil
	}}
	pool, err := NewPool(1, factory.New, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.Render(context.Background(), "https://a.example.com", time.Second)
	}()
	require.Eventually(t, func() bool { return factory.created() == 1 }, time.Second, time.Millisecond)

	_, err = pool.Render(context.Background(), "https://b.example.com", 20*time.Millisecond)
	require.Equal(t, recipe.CodeRenderError, recipe.CodeOf(err))
	require.ErrorIs(t, err, recipe.ErrRenderCapacity)
	close(release)
	<-done
}

func TestPoolFactoryFailureReleasesSlot(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{err: errors.New("chrome missing")}
	pool, err := NewPool(1, factory.New, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = pool.Render(context.Background(), "https://example.com", 50*time.Millisecond)
		require.Equal(t, recipe.CodeRenderError, recipe.CodeOf(err))
		require.NotErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestPoolClosed(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	pool, err := NewPool(1, factory.New, zap.NewNop())
	require.NoError(t, err)
	_, err = pool.Render(context.Background(), "https://example.com", time.Second)
	require.NoError(t, err)

	pool.Close()
	require.True(t, factory.sessions[0].closed.Load())
	_, err = pool.Render(context.Background(), "https://example.com", time.Second)
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestDisabledRendererIsPermanent(t *testing.T) {
	t.Parallel()

	_, err := Disabled{}.Render(context.Background(), "https://example.com", time.Second)
	require.Equal(t, recipe.CodeRenderError, recipe.CodeOf(err))
	require.False(t, recipe.IsRetryable(err))
	require.False(t, recipe.IsTransient(err))
}
