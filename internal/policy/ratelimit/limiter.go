// Package ratelimit implements per-domain token buckets with a bounded wait.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// MaxWait bounds how long a caller may block for a token.
	MaxWait time.Duration
}

// Limiter manages per-domain rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	maxWait      time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		maxWait:      maxWait,
	}
}

// Wait blocks until a token is available for domain. If the token cannot be
// granted within MaxWait it returns a retryable FetchTimeout error; if ctx
// ends first it returns the context error.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	limiter := l.limiterFor(domain)

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(waitCtx)
	if err == nil {
		if duration := time.Since(start); duration > time.Millisecond {
			metrics.ObserveRateLimitDelay(domain, duration)
		}
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("rate limit wait: %w", ctx.Err())
	}
	return recipe.NewError(recipe.CodeFetchTimeout,
		fmt.Sprintf("%s is rate limited; no slot within %s", domain, l.maxWait), err)
}

// Tokens reports the tokens currently available for domain.
func (l *Limiter) Tokens(domain string) float64 {
	return l.limiterFor(domain).Tokens()
}

// Reset drops all buckets.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters = make(map[string]*rate.Limiter)
}

func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[domain] = limiter
	}
	return limiter
}
