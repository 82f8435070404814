package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func TestWaitGrantsBurstImmediately(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 2, MaxWait: time.Second})
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "example.com"))
	require.NoError(t, l.Wait(context.Background(), "example.com"))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitExceedingMaxWaitIsRetryableTimeout(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1, MaxWait: 50 * time.Millisecond})
	require.NoError(t, l.Wait(context.Background(), "slow.example.com"))

	err := l.Wait(context.Background(), "slow.example.com")
	require.Error(t, err)
	require.Equal(t, recipe.CodeFetchTimeout, recipe.CodeOf(err))
	require.True(t, recipe.IsRetryable(err))
}

func TestWaitIsPerDomain(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1, MaxWait: 50 * time.Millisecond})
	require.NoError(t, l.Wait(context.Background(), "a.example.com"))
	require.NoError(t, l.Wait(context.Background(), "b.example.com"))
}

func TestWaitRespectsCallerCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1, MaxWait: time.Minute})
	require.NoError(t, l.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, "example.com")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	_, isImport := recipe.AsImportError(err)
	require.False(t, isImport)
}

func TestTokensAndReset(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 3})
	require.InDelta(t, 3, l.Tokens("example.com"), 0.01)
	require.NoError(t, l.Wait(context.Background(), "example.com"))
	require.InDelta(t, 2, l.Tokens("example.com"), 0.01)

	l.Reset()
	require.InDelta(t, 3, l.Tokens("example.com"), 0.01)
}

func TestUnlimitedWhenRPSUnset(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "example.com"))
	}
}
