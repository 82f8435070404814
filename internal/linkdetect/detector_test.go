package linkdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func TestDetectExplicitURL(t *testing.T) {
	t.Parallel()

	links := New().Detect("Best lasagna ever! https://allrecipes.com/recipe/123?utm_source=ig #dinner")
	require.Len(t, links, 1)
	require.Equal(t, recipe.LinkExplicitURL, links[0].Kind)
	require.Equal(t, "https://allrecipes.com/recipe/123", links[0].URL)
	require.InDelta(t, 1.0, links[0].Confidence, 1e-9)
}

func TestDetectPenalties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"bare domain", "recipe at seriouseats.com/pasta today", 0.9},
		{"shortener", "grab it https://bit.ly/3abc", 0.8},
		{"truncated", "see https://example.com/long-recipe-na…", 0.7},
		{"trailing punctuation is not a penalty", "made this (https://example.com/pie).", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			links := New().Detect(tt.text)
			best, ok := BestURL(links)
			require.True(t, ok)
			assert.InDelta(t, tt.want, best.Confidence, 1e-9)
		})
	}
}

func TestDetectLinkInBioPhraseOnly(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"Link in bio 🔗",
		"FULL RECIPE IN BIO!!! #pasta",
		"link 👉 in bio",
		"Recipe linked in my bio ✨",
	} {
		links := New().Detect(text)
		require.Len(t, links, 1, text)
		require.Equal(t, recipe.LinkBioPhrase, links[0].Kind)
		require.InDelta(t, PhraseConfidence, links[0].Confidence, 1e-9)
		require.Empty(t, links[0].URL)
		_, ok := BestURL(links)
		require.False(t, ok)
		require.True(t, HasBioPhrase(links))
	}
}

func TestDetectRanksURLAbovePhrase(t *testing.T) {
	t.Parallel()

	links := New().Detect("link in bio or https://bit.ly/x and https://example.com/cake")
	require.Len(t, links, 3)
	require.Equal(t, "https://example.com/cake", links[0].URL)
	require.Equal(t, "https://bit.ly/x", links[1].URL)
	require.Equal(t, recipe.LinkBioPhrase, links[2].Kind)
}

func TestDetectNothing(t *testing.T) {
	t.Parallel()

	require.Empty(t, New().Detect("just a photo of my lunch, contact me@gmail.com"))
	require.Empty(t, New().Detect(""))
}

func TestDetectDeduplicatesSameCanonicalURL(t *testing.T) {
	t.Parallel()

	links := New().Detect("https://example.com/a?utm_source=x and again https://example.com/a")
	require.Len(t, links, 1)
}

func TestWithPhrasesNormalizesInput(t *testing.T) {
	t.Parallel()

	d := New(WithPhrases([]string{"Swipe UP!"}))
	links := d.Detect("swipe up for the recipe")
	require.Len(t, links, 1)
	require.Equal(t, "swipe up", links[0].Span)
	require.Empty(t, d.Detect("link in bio"))
}
