// Package headless renders script-heavy pages through a fixed pool of
// browser sessions.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Session is one browser session that renders a page at a time.
type Session interface {
	Render(ctx context.Context, url string) (recipe.RenderedPage, error)
	Close()
}

// SessionFactory creates a fresh Session.
type SessionFactory func() (Session, error)

// ErrPoolClosed is returned by leases after Close.
var ErrPoolClosed = errors.New("render pool closed")

// Pool leases sessions exclusively. A session that times out, errors, or is
// cancelled mid-render is discarded and replaced lazily on the next lease.
type Pool struct {
	factory SessionFactory
	logger  *zap.Logger
	slots   chan struct{}
	idle    chan Session

	mu     sync.Mutex
	closed bool
}

// NewPool builds a pool of at most size concurrent sessions.
func NewPool(size int, factory SessionFactory, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be > 0")
	}
	if factory == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		factory: factory,
		logger:  logger,
		slots:   make(chan struct{}, size),
		idle:    make(chan Session, size),
	}, nil
}

// Render leases a session, renders url within timeout, and always returns
// the lease. Failures surface as retryable RenderError; lease failures also
// wrap recipe.ErrRenderCapacity.
func (p *Pool) Render(ctx context.Context, url string, timeout time.Duration) (recipe.RenderedPage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	session, err := p.lease(ctx)
	if err != nil {
		return recipe.RenderedPage{}, recipe.NewError(recipe.CodeRenderError, "no browser session became available",
			fmt.Errorf("%w: %w", recipe.ErrRenderCapacity, err))
	}
	healthy := false
	defer func() { p.release(session, healthy) }()

	page, err := session.Render(ctx, url)
	if err != nil {
		return recipe.RenderedPage{}, recipe.NewError(recipe.CodeRenderError, "the page could not be rendered", err)
	}
	if ctx.Err() != nil {
		return recipe.RenderedPage{}, recipe.NewError(recipe.CodeRenderError, "the page could not be rendered", ctx.Err())
	}
	healthy = true
	return page, nil
}

func (p *Pool) lease(ctx context.Context) (Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
	if p.isClosed() {
		<-p.slots
		return nil, ErrPoolClosed
	}
	metrics.IncRenderSessions()

	select {
	case s := <-p.idle:
		return s, nil
	default:
	}
	s, err := p.factory()
	if err != nil {
		metrics.DecRenderSessions()
		<-p.slots
		return nil, fmt.Errorf("create browser session: %w", err)
	}
	return s, nil
}

func (p *Pool) release(s Session, healthy bool) {
	defer func() {
		metrics.DecRenderSessions()
		<-p.slots
	}()
	if !healthy || p.isClosed() {
		s.Close()
		if !healthy {
			metrics.ObserveRenderRecycle()
			p.logger.Debug("browser session recycled")
		}
		return
	}
	select {
	case p.idle <- s:
	default:
		s.Close()
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close discards idle sessions. Leased sessions are closed on return.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case s := <-p.idle:
			s.Close()
		default:
			return
		}
	}
}

// Disabled is the Renderer used when headless rendering is turned off.
type Disabled struct{}

// Render always fails with a non-retryable RenderError.
func (Disabled) Render(context.Context, string, time.Duration) (recipe.RenderedPage, error) {
	return recipe.RenderedPage{}, &recipe.ImportError{
		Code:    recipe.CodeRenderError,
		Message: "this site needs a browser to load and rendering is disabled",
	}
}
