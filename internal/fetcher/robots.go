package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/metrics"
)

// RobotsConfig controls robots.txt enforcement.
type RobotsConfig struct {
	Respect    bool
	UserAgent  string
	TTL        time.Duration
	MaxEntries int
	Timeout    time.Duration
}

// RobotsPolicy decides whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Robots enforces robots.txt per host with its own cache.
type Robots struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	cache     *ristretto.Cache[string, *robotstxt.RobotsData]
	logger    *zap.Logger
}

// NewRobots builds a RobotsPolicy. When enforcement is off every URL is allowed.
func NewRobots(cfg RobotsConfig, logger *zap.Logger) (RobotsPolicy, error) {
	if !cfg.Respect {
		return allowAll{}, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *robotstxt.RobotsData]{
		NumCounters:        int64(cfg.MaxEntries) * 10,
		MaxCost:            int64(cfg.MaxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create robots cache: %w", err)
	}
	return &Robots{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		ttl:       cfg.TTL,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Allowed implements RobotsPolicy. Unreachable robots files allow access.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data, err := r.load(ctx, parsed)
	if err != nil {
		r.logger.Warn("robots fetch failed; allowing access", zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (r *Robots) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	if data, ok := r.cache.Get(hostKey); ok {
		metrics.ObserveCache("robots", true)
		return data, nil
	}
	metrics.ObserveCache("robots", false)

	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	// A server error says nothing about the site's rules; do not cache it.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	r.cache.SetWithTTL(hostKey, data, 1, r.ttl)
	r.cache.Wait()
	return data, nil
}

// Close releases the robots cache.
func (r *Robots) Close() {
	r.cache.Close()
}

type allowAll struct{}

func (allowAll) Allowed(context.Context, string) bool { return true }
