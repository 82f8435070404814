package breaker

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var transient = recipe.HTTPStatusError(http.StatusServiceUnavailable, "https://example.com")

func newTestRegistry(clock *fakeClock) *Registry {
	return NewRegistry(Config{
		Threshold:     5,
		Window:        time.Minute,
		Cooldown:      30 * time.Second,
		BackoffFactor: 2,
		MaxCooldown:   90 * time.Second,
	}, WithClock(clock.Now))
}

func TestBreakerOpensAfterExactlyThresholdFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.Record(transient)
		clock.Advance(time.Second)
	}
	require.Equal(t, recipe.BreakerClosed, b.State())

	require.NoError(t, b.Allow())
	b.Record(transient)
	require.Equal(t, recipe.BreakerOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	ie, ok := recipe.AsImportError(err)
	require.True(t, ok)
	require.Equal(t, recipe.CodeDomainCircuitOpen, ie.Code)
	require.True(t, ie.Retryable)
	require.Equal(t, clock.Now().Add(30*time.Second), ie.RetryAt)
}

func TestBreakerFailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")

	for i := 0; i < 4; i++ {
		b.Record(transient)
	}
	clock.Advance(2 * time.Minute)
	b.Record(transient)
	require.Equal(t, recipe.BreakerClosed, b.State())
	require.Equal(t, 1, b.Snapshot().ConsecutiveFailures)
}

func TestBreakerPermanentFailuresDoNotCount(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")

	for i := 0; i < 10; i++ {
		b.Record(recipe.HTTPStatusError(http.StatusNotFound, "https://example.com/x"))
	}
	require.Equal(t, recipe.BreakerClosed, b.State())
	require.Zero(t, b.Snapshot().ConsecutiveFailures)
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")

	for i := 0; i < 4; i++ {
		b.Record(transient)
	}
	b.Record(nil)
	for i := 0; i < 4; i++ {
		b.Record(transient)
	}
	require.Equal(t, recipe.BreakerClosed, b.State())
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")
	for i := 0; i < 5; i++ {
		b.Record(transient)
	}
	clock.Advance(30 * time.Second)
	require.Equal(t, recipe.BreakerHalfOpen, b.State())

	require.NoError(t, b.Allow())
	require.Error(t, b.Allow(), "second concurrent trial must be rejected")

	b.Record(nil)
	require.Equal(t, recipe.BreakerClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreakerFailedTrialGrowsCooldown(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")
	for i := 0; i < 5; i++ {
		b.Record(transient)
	}

	clock.Advance(30 * time.Second)
	require.NoError(t, b.Allow())
	b.Record(transient)
	require.Equal(t, recipe.BreakerOpen, b.State())
	require.Equal(t, clock.Now().Add(60*time.Second), b.Snapshot().NextRetryAt)

	clock.Advance(59 * time.Second)
	require.Error(t, b.Allow())
	clock.Advance(time.Second)
	require.NoError(t, b.Allow())
	b.Record(transient)
	// Capped at MaxCooldown.
	require.Equal(t, clock.Now().Add(90*time.Second), b.Snapshot().NextRetryAt)
}

func TestBreakerPermanentFailureReleasesTrial(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestRegistry(clock).For("example.com")
	for i := 0; i < 5; i++ {
		b.Record(transient)
	}
	clock.Advance(30 * time.Second)
	require.NoError(t, b.Allow())
	b.Record(recipe.HTTPStatusError(http.StatusNotFound, "https://example.com/x"))
	require.Equal(t, recipe.BreakerHalfOpen, b.State())
	require.NoError(t, b.Allow())
}

func TestRegistryIsolatesDomainsAndResets(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := newTestRegistry(clock)
	for i := 0; i < 5; i++ {
		r.For("a.example.com").Record(transient)
	}
	require.Equal(t, recipe.BreakerOpen, r.Snapshot("a.example.com").State)
	require.Equal(t, recipe.BreakerClosed, r.Snapshot("b.example.com").State)
	require.Same(t, r.For("a.example.com"), r.For("a.example.com"))

	r.Reset()
	require.Equal(t, recipe.BreakerClosed, r.Snapshot("a.example.com").State)
	require.NoError(t, r.For("a.example.com").Allow())
}
