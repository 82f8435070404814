// Package fetcher retrieves single recipe pages politely: it consults the
// domain's circuit breaker, the crawl cache, robots.txt, and the per-domain
// rate limiter before any network call, and promotes script-rendered pages
// to the headless renderer.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/breaker"
	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/policy/ratelimit"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Page is a raw HTTP response from the plain getter.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
}

// PageGetter performs one plain HTTP GET. Non-2xx responses are pages, not
// errors.
type PageGetter interface {
	Get(ctx context.Context, url string) (Page, error)
}

// Config controls fetch-stage behavior.
type Config struct {
	Timeout       time.Duration
	RenderTimeout time.Duration
	// PromoteShells re-fetches client-rendered shells through the renderer.
	PromoteShells bool
}

// Deps are the collaborators a Fetcher needs. Getter, Breakers and Limiter
// are required.
type Deps struct {
	Getter   PageGetter
	Renderer recipe.Renderer
	Breakers *breaker.Registry
	Limiter  *ratelimit.Limiter
	Robots   RobotsPolicy
	Cache    *Cache
	Detector *ShellDetector
	Logger   *zap.Logger
	Now      func() time.Time
}

// Fetcher retrieves one page per call under the domain's politeness rules.
type Fetcher struct {
	cfg      Config
	getter   PageGetter
	renderer recipe.Renderer
	breakers *breaker.Registry
	limiter  *ratelimit.Limiter
	robots   RobotsPolicy
	cache    *Cache
	detector *ShellDetector
	logger   *zap.Logger
	now      func() time.Time
}

// New wires a Fetcher.
func New(cfg Config, deps Deps) (*Fetcher, error) {
	if deps.Getter == nil {
		return nil, errors.New("page getter is required")
	}
	if deps.Breakers == nil {
		return nil, errors.New("breaker registry is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	f := &Fetcher{
		cfg:      cfg,
		getter:   deps.Getter,
		renderer: deps.Renderer,
		breakers: deps.Breakers,
		limiter:  deps.Limiter,
		robots:   deps.Robots,
		cache:    deps.Cache,
		detector: deps.Detector,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if f.robots == nil {
		f.robots = allowAll{}
	}
	if f.detector == nil {
		f.detector = NewShellDetector(0)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.now == nil {
		f.now = time.Now
	}
	f.logger = f.logger.Named("fetcher")
	return f, nil
}

// Fetch retrieves the page for verdict.URL.
func (f *Fetcher) Fetch(ctx context.Context, verdict recipe.DomainVerdict) (recipe.CrawlResult, error) {
	domain := verdict.Domain
	site := metrics.SanitizeSite(verdict.URL)
	circuit := f.breakers.For(domain)
	if err := circuit.Allow(); err != nil {
		metrics.ObserveFetch(site, "circuit_open")
		return recipe.CrawlResult{}, err
	}

	key := cacheKey(verdict.URL)
	if cached, ok := f.cache.Get(key); ok {
		circuit.Release()
		metrics.ObserveFetch(site, "cache")
		return cached, nil
	}

	if !f.robots.Allowed(ctx, verdict.URL) {
		circuit.Release()
		metrics.ObserveFetch(site, "robots_disallowed")
		return recipe.CrawlResult{}, recipe.NewError(recipe.CodeRobotsDisallowed,
			fmt.Sprintf("%s does not allow automated access to this page", domain), nil)
	}

	if err := f.limiter.Wait(ctx, domain); err != nil {
		circuit.Release()
		metrics.ObserveFetch(site, "rate_limited")
		return recipe.CrawlResult{}, err
	}

	res, err := f.retrieve(ctx, verdict)
	if errors.Is(err, recipe.ErrRenderCapacity) {
		circuit.Release()
	} else {
		circuit.Record(err)
	}
	if err != nil {
		metrics.ObserveFetch(site, string(recipe.CodeOf(err)))
		f.logger.Debug("fetch failed",
			zap.String("url", verdict.URL),
			zap.String("domain", domain),
			zap.String("code", string(recipe.CodeOf(err))),
			zap.Error(err))
		return recipe.CrawlResult{}, err
	}
	metrics.ObserveFetch(site, "ok")
	f.cache.Set(key, res)
	return res, nil
}

// Health merges the breaker and rate limiter state for domain.
func (f *Fetcher) Health(domain string) recipe.DomainHealth {
	h := f.breakers.Snapshot(domain)
	h.Tokens = f.limiter.Tokens(domain)
	return h
}

func (f *Fetcher) retrieve(ctx context.Context, verdict recipe.DomainVerdict) (recipe.CrawlResult, error) {
	if verdict.RequiresRender {
		return f.render(ctx, verdict.URL)
	}

	getCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()
	start := f.now()
	page, err := f.getter.Get(getCtx, verdict.URL)
	metrics.ObserveFetchDuration("plain", time.Since(start))
	if err != nil {
		return recipe.CrawlResult{}, classifyTransport(ctx, verdict.URL, err)
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return recipe.CrawlResult{}, recipe.HTTPStatusError(page.StatusCode, verdict.URL)
	}

	if f.cfg.PromoteShells && f.renderer != nil && f.detector.ShouldRender(page) {
		rendered, rerr := f.render(ctx, verdict.URL)
		if rerr == nil {
			return rendered, nil
		}
		if ctx.Err() != nil {
			return recipe.CrawlResult{}, rerr
		}
		f.logger.Warn("render promotion failed; using plain response",
			zap.String("url", verdict.URL), zap.Error(rerr))
	}

	finalURL := page.URL
	if finalURL == "" {
		finalURL = verdict.URL
	}
	return recipe.CrawlResult{
		URL:        verdict.URL,
		FinalURL:   finalURL,
		Body:       page.Body,
		StatusCode: page.StatusCode,
		FetchedAt:  f.now(),
	}, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (recipe.CrawlResult, error) {
	if f.renderer == nil {
		return recipe.CrawlResult{}, &recipe.ImportError{
			Code:    recipe.CodeRenderError,
			Message: "this site needs a browser to load and rendering is disabled",
		}
	}
	start := f.now()
	page, err := f.renderer.Render(ctx, url, f.cfg.RenderTimeout)
	metrics.ObserveFetchDuration("render", time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return recipe.CrawlResult{}, fmt.Errorf("render %s: %w", url, ctx.Err())
		}
		if _, ok := recipe.AsImportError(err); ok {
			return recipe.CrawlResult{}, err
		}
		return recipe.CrawlResult{}, recipe.NewError(recipe.CodeRenderError, "the page could not be rendered", err)
	}
	if page.StatusCode != 0 && (page.StatusCode < 200 || page.StatusCode > 299) {
		return recipe.CrawlResult{}, recipe.HTTPStatusError(page.StatusCode, url)
	}
	finalURL := page.URL
	if finalURL == "" {
		finalURL = url
	}
	return recipe.CrawlResult{
		URL:        url,
		FinalURL:   finalURL,
		Body:       []byte(page.HTML),
		StatusCode: http.StatusOK,
		FetchedAt:  f.now(),
		Rendered:   true,
	}, nil
}

// classifyTransport maps a getter failure onto the taxonomy. Caller
// cancellation stays a plain context error so it never counts against the
// domain.
func classifyTransport(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("fetch %s: %w", url, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return recipe.NewError(recipe.CodeFetchTimeout, "the page took too long to respond", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return recipe.NewError(recipe.CodeFetchTimeout, "the page took too long to respond", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return recipe.NewError(recipe.CodeFetchHTTPError, "the site could not be found", err)
	}
	return &recipe.ImportError{
		Code:      recipe.CodeFetchHTTPError,
		Message:   "the site could not be reached",
		Retryable: true,
		Err:       err,
	}
}

func cacheKey(raw string) string {
	if canonical, err := recipe.CanonicalURL(raw); err == nil {
		return canonical
	}
	return raw
}
