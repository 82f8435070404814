package orchestrator

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// RetryPolicy spaces out attempts of a job with jittered exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the stock attempt budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// ShouldRetry reports whether err earns another attempt after attempt
// attempts have been spent.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return recipe.IsRetryable(err)
}

// Delay returns the wait before the next attempt. Open circuits report the
// moment they admit a trial, which replaces the exponential schedule.
func (p RetryPolicy) Delay(err error, attempt int, now time.Time) time.Duration {
	if ie, ok := recipe.AsImportError(err); ok && ie.Code == recipe.CodeDomainCircuitOpen && !ie.RetryAt.IsZero() {
		if wait := ie.RetryAt.Sub(now); wait > 0 {
			return wait
		}
		return 0
	}
	return p.Backoff(attempt)
}

// Backoff returns base*2^(attempt-1) capped at MaxDelay, with the upper half
// jittered.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
