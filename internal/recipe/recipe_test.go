package recipe

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSourcesFrom(t *testing.T) {
	t.Parallel()

	require.ElementsMatch(t, []JobStatus{JobStatusPending, JobStatusProcessing}, SourcesFrom(JobStatusFailed))
	require.ElementsMatch(t, []JobStatus{JobStatusProcessing}, SourcesFrom(JobStatusCompleted))
	require.Empty(t, SourcesFrom(JobStatusPending))
}

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips utm", "https://allrecipes.com/recipe/123?utm_source=ig", "https://allrecipes.com/recipe/123"},
		{"keeps real params", "https://example.com/r?id=7&fbclid=x&b=2", "https://example.com/r?b=2&id=7"},
		{"lowercases and drops www", "HTTPS://WWW.Example.COM/Recipe/", "https://example.com/Recipe"},
		{"drops default port and fragment", "https://example.com:443/a#step-2", "https://example.com/a"},
		{"adds scheme to bare domain", "example.com/pie", "https://example.com/pie"},
		{"root path", "https://example.com/", "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalURL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalURLRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "ftp://example.com/x", "https://localhost/x", "not a url"} {
		_, err := CanonicalURL(in)
		require.Error(t, err, in)
	}
}

func TestHostname(t *testing.T) {
	t.Parallel()

	host, err := Hostname("https://www.AllRecipes.com:8443/recipe/1")
	require.NoError(t, err)
	require.Equal(t, "allrecipes.com", host)
}

func TestHTTPStatusErrorRetryability(t *testing.T) {
	t.Parallel()

	require.True(t, HTTPStatusError(http.StatusServiceUnavailable, "u").Retryable)
	require.True(t, HTTPStatusError(http.StatusTooManyRequests, "u").Retryable)
	require.False(t, HTTPStatusError(http.StatusNotFound, "u").Retryable)
	require.False(t, HTTPStatusError(http.StatusForbidden, "u").Retryable)
}

func TestErrorHelpersSeeThroughWrapping(t *testing.T) {
	t.Parallel()

	base := NewError(CodeFetchTimeout, "timed out", errors.New("deadline"))
	wrapped := fmt.Errorf("fetch stage: %w", base)

	require.Equal(t, CodeFetchTimeout, CodeOf(wrapped))
	require.True(t, IsRetryable(wrapped))
	require.True(t, IsTransient(wrapped))
	require.Equal(t, "timed out", PublicMessage(wrapped))

	require.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	require.False(t, IsRetryable(errors.New("boom")))
	require.Equal(t, "internal error", PublicMessage(errors.New("boom")))
}

func TestIsTransientExcludesPermanentFailures(t *testing.T) {
	t.Parallel()

	require.False(t, IsTransient(HTTPStatusError(http.StatusNotFound, "u")))
	require.False(t, IsTransient(NewError(CodeRobotsDisallowed, "robots", nil)))
	require.True(t, IsTransient(HTTPStatusError(http.StatusBadGateway, "u")))
	require.True(t, IsTransient(NewError(CodeRenderError, "render", nil)))

	busy := NewError(CodeRenderError, "busy", fmt.Errorf("%w: slot wait", ErrRenderCapacity))
	require.True(t, IsRetryable(busy))
	require.False(t, IsTransient(busy))
}

func TestCircuitOpenErrorCarriesRetryAt(t *testing.T) {
	t.Parallel()

	at := time.Unix(100, 0)
	err := CircuitOpenError("example.com", at)
	require.True(t, err.Retryable)
	require.Equal(t, at, err.RetryAt)
	require.Equal(t, CodeDomainCircuitOpen, err.Code)
}
