// Package breaker implements per-domain circuit breakers for the fetcher.
package breaker

import (
	"sync"
	"time"

	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Config controls when a domain trips and how long it cools down.
type Config struct {
	// Threshold is the number of consecutive transient failures that opens the circuit.
	Threshold int
	// Window bounds how far apart those failures may be.
	Window time.Duration
	// Cooldown is the initial open duration.
	Cooldown time.Duration
	// BackoffFactor multiplies the cooldown after a failed trial.
	BackoffFactor float64
	// MaxCooldown caps the grown cooldown.
	MaxCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 2
	}
	if c.MaxCooldown < c.Cooldown {
		c.MaxCooldown = 10 * time.Minute
		if c.MaxCooldown < c.Cooldown {
			c.MaxCooldown = c.Cooldown
		}
	}
	return c
}

// Breaker is the circuit for a single domain. Safe for concurrent use.
type Breaker struct {
	domain string
	cfg    Config
	now    func() time.Time

	mu          sync.Mutex
	state       recipe.BreakerState
	failures    int
	streakStart time.Time
	lastFailure time.Time
	openedAt    time.Time
	cooldown    time.Duration
	trialActive bool
}

func newBreaker(domain string, cfg Config, now func() time.Time) *Breaker {
	return &Breaker{
		domain:   domain,
		cfg:      cfg,
		now:      now,
		state:    recipe.BreakerClosed,
		cooldown: cfg.Cooldown,
	}
}

// Allow reports whether a request may proceed. While open, or while a
// half-open trial is already in flight, it returns a DomainCircuitOpen error
// carrying the earliest useful retry time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	switch b.state {
	case recipe.BreakerOpen:
		return recipe.CircuitOpenError(b.domain, b.openedAt.Add(b.cooldown))
	case recipe.BreakerHalfOpen:
		if b.trialActive {
			return recipe.CircuitOpenError(b.domain, b.now().Add(b.cooldown))
		}
		b.trialActive = true
	}
	return nil
}

// Record feeds a fetch outcome back into the circuit. Nil is a success,
// transient failures count toward opening, and permanent failures only
// release a half-open trial slot.
func (b *Breaker) Record(err error) {
	switch {
	case err == nil:
		b.recordSuccess()
	case recipe.IsTransient(err):
		b.recordFailure()
	default:
		b.Release()
	}
}

// Release gives back a half-open trial slot without an outcome, for requests
// that ended before reaching the network.
func (b *Breaker) Release() {
	b.mu.Lock()
	b.trialActive = false
	b.mu.Unlock()
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialActive = false
	b.cooldown = b.cfg.Cooldown
	if b.state != recipe.BreakerClosed {
		b.transition(recipe.BreakerClosed)
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.lastFailure = now
	switch b.state {
	case recipe.BreakerHalfOpen:
		b.trialActive = false
		grown := time.Duration(float64(b.cooldown) * b.cfg.BackoffFactor)
		if grown > b.cfg.MaxCooldown {
			grown = b.cfg.MaxCooldown
		}
		b.cooldown = grown
		b.open(now)
	case recipe.BreakerClosed:
		if b.failures == 0 || now.Sub(b.streakStart) > b.cfg.Window {
			b.failures = 0
			b.streakStart = now
		}
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.open(now)
		}
	}
}

func (b *Breaker) open(now time.Time) {
	b.openedAt = now
	b.transition(recipe.BreakerOpen)
}

func (b *Breaker) maybeHalfOpen() {
	if b.state == recipe.BreakerOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		b.trialActive = false
		b.transition(recipe.BreakerHalfOpen)
	}
}

func (b *Breaker) transition(to recipe.BreakerState) {
	b.state = to
	metrics.ObserveBreakerTransition(b.domain, string(to))
}

// State returns the current circuit state.
func (b *Breaker) State() recipe.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

// Snapshot reports the circuit's contribution to DomainHealth.
func (b *Breaker) Snapshot() recipe.DomainHealth {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	h := recipe.DomainHealth{
		Domain:              b.domain,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailure:         b.lastFailure,
		Cooldown:            b.cooldown.String(),
	}
	if b.state == recipe.BreakerOpen {
		h.NextRetryAt = b.openedAt.Add(b.cooldown)
	}
	return h
}

// Registry owns one Breaker per domain.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects a clock function for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		breakers: make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns the breaker for domain, creating it on first use.
func (r *Registry) For(domain string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[domain]
	if !ok {
		b = newBreaker(domain, r.cfg, r.now)
		r.breakers[domain] = b
	}
	return b
}

// Snapshot returns the health of domain without creating state for it.
func (r *Registry) Snapshot(domain string) recipe.DomainHealth {
	r.mu.Lock()
	b, ok := r.breakers[domain]
	r.mu.Unlock()
	if !ok {
		return recipe.DomainHealth{Domain: domain, State: recipe.BreakerClosed, Cooldown: r.cfg.Cooldown.String()}
	}
	return b.Snapshot()
}

// Reset drops all circuit state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*Breaker)
}
