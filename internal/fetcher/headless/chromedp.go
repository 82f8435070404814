package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Config controls the chromedp browser sessions.
type Config struct {
	UserAgent string
	// Settle is how long to let scripts run after the body is ready.
	Settle time.Duration
}

// Browser owns the chromedp allocator and hands out sessions.
type Browser struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewBrowser creates the headless Chrome allocator.
func NewBrowser(cfg Config) *Browser {
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close shuts down every browser process started by the allocator.
func (b *Browser) Close() {
	b.allocCancel()
}

// NewSession implements SessionFactory. Each session owns its own browser
// process so recycling it discards all page state.
func (b *Browser) NewSession() (Session, error) {
	ctx, cancel := chromedp.NewContext(b.allocator)
	s := &chromeSession{
		ctx:    ctx,
		cancel: cancel,
		cfg:    b.cfg,
		meta:   newResponseMeta(),
	}
	chromedp.ListenTarget(ctx, s.meta.captureEvent)
	return s, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	meta   *responseMeta
}

func (s *chromeSession) Close() {
	s.cancel()
}

// Render navigates the session's tab. The caller's deadline and
// cancellation are bridged onto the chromedp context.
func (s *chromeSession) Render(ctx context.Context, url string) (recipe.RenderedPage, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s.meta.reset()
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		s.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return recipe.RenderedPage{}, fmt.Errorf("chromedp run: %w", err)
	}
	status, responseURL := s.meta.snapshotWithFallbacks(url, finalURL)
	return recipe.RenderedPage{
		URL:        responseURL,
		StatusCode: status,
		HTML:       html,
	}, nil
}

func (s *chromeSession) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.status = 0
	m.url = ""
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	event, ok := ev.(*network.EventResponseReceived)
	if !ok || event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
