package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/ai"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func page(body string) recipe.CrawlResult {
	return recipe.CrawlResult{
		URL:        "https://www.allrecipes.com/recipe/23600/worlds-best-lasagna/",
		FinalURL:   "https://www.allrecipes.com/recipe/23600/worlds-best-lasagna/",
		Body:       []byte(body),
		StatusCode: 200,
	}
}

type stubExtractor struct {
	tier  recipe.Tier
	cand  recipe.CandidateRecipe
	err   error
	calls int
}

func (s *stubExtractor) Tier() recipe.Tier { return s.tier }

func (s *stubExtractor) TryExtract(context.Context, recipe.CrawlResult, recipe.DomainVerdict) (recipe.CandidateRecipe, error) {
	s.calls++
	return s.cand, s.err
}

type stubAI struct {
	guess recipe.StructuredGuess
	err   error
	calls int
	text  string
}

func (s *stubAI) Extract(_ context.Context, text string, _ time.Duration) (recipe.StructuredGuess, error) {
	s.calls++
	s.text = text
	return s.guess, s.err
}

func TestStructuredJSONLDGraph(t *testing.T) {
	t.Parallel()

	cand, err := NewStructured().TryExtract(context.Background(), page(jsonLDGraphPage), recipe.DomainVerdict{})
	require.NoError(t, err)
	require.Equal(t, "World's Best Lasagna", cand.Title)
	require.Len(t, cand.Ingredients, 3)
	require.Equal(t, "¾ pound lean ground beef", cand.Ingredients[1].Raw)
	require.Equal(t, []string{
		"Cook sausage, beef, and onion over medium heat.",
		"Stir in tomatoes and simmer.",
		"Layer and bake.",
	}, cand.Instructions)
	require.Equal(t, 30*time.Minute, cand.PrepTime)
	require.Equal(t, 150*time.Minute, cand.CookTime)
	require.Equal(t, 195*time.Minute, cand.TotalTime)
	require.Equal(t, 12, cand.Servings)
	require.Equal(t, "Italian", cand.Cuisine)
	require.Equal(t, []string{"pasta", "comfort food"}, cand.Tags)
	require.InDelta(t, 1.0, cand.Confidence, 1e-9)
	require.InDelta(t, 1.0, cand.FieldConfidence[recipe.FieldIngredients], 1e-9)
}

func TestStructuredJSONLDArraySkipsBadBlocks(t *testing.T) {
	t.Parallel()

	cand, err := NewStructured().TryExtract(context.Background(), page(jsonLDArrayPage), recipe.DomainVerdict{})
	require.NoError(t, err)
	require.Equal(t, "Pancakes", cand.Title)
	require.Equal(t, 4, cand.Servings)
	require.Equal(t, []string{"Mix. Fry."}, cand.Instructions)
	require.Less(t, cand.Confidence, 1.0)
}

func TestStructuredMicrodata(t *testing.T) {
	t.Parallel()

	cand, err := NewStructured().TryExtract(context.Background(), page(microdataPage), recipe.DomainVerdict{})
	require.NoError(t, err)
	require.Equal(t, "Grandma's Cookies", cand.Title)
	require.Equal(t, 15*time.Minute, cand.PrepTime)
	require.Equal(t, 24, cand.Servings)
	require.Len(t, cand.Ingredients, 3)
	require.Len(t, cand.Instructions, 1)
	require.Contains(t, cand.Instructions[0], "Cream butter and sugar.")
}

func TestStructuredMissesPlainPages(t *testing.T) {
	t.Parallel()

	_, err := NewStructured().TryExtract(context.Background(), page(blogPage), recipe.DomainVerdict{})
	require.ErrorIs(t, err, recipe.ErrNoRecipe)
}

func TestAdapterUsesDomainSelectors(t *testing.T) {
	t.Parallel()

	verdict := recipe.DomainVerdict{Adapter: &recipe.AdapterRules{
		Title:        "h1.entry-title",
		Ingredients:  "ul.ingredients li",
		Instructions: "ol.steps li",
		Servings:     ".servings",
		TotalTime:    ".time",
	}}
	cand, err := NewAdapter().TryExtract(context.Background(), page(adapterPage), verdict)
	require.NoError(t, err)
	require.Equal(t, "Smitten Shortbread", cand.Title)
	require.Len(t, cand.Ingredients, 3)
	require.Equal(t, []string{"Mix.", "Press into pan.", "Bake."}, cand.Instructions)
	require.Equal(t, 8, cand.Servings)
	require.Equal(t, 75*time.Minute, cand.TotalTime)
	require.InDelta(t, adapterDiscount, cand.Confidence, 1e-9)
}

func TestAdapterMissesWithoutRules(t *testing.T) {
	t.Parallel()

	_, err := NewAdapter().TryExtract(context.Background(), page(adapterPage), recipe.DomainVerdict{})
	require.ErrorIs(t, err, recipe.ErrNoRecipe)

	verdict := recipe.DomainVerdict{Adapter: &recipe.AdapterRules{Ingredients: ".none", Instructions: ".none"}}
	_, err = NewAdapter().TryExtract(context.Background(), page(adapterPage), verdict)
	require.ErrorIs(t, err, recipe.ErrNoRecipe)
}

func TestAIFallbackConfidenceNeverExceedsCeiling(t *testing.T) {
	t.Parallel()

	stub := &stubAI{guess: recipe.StructuredGuess{
		Title:        "Onion Soup",
		Ingredients:  []recipe.Ingredient{{Name: "stock"}, {Name: "butter"}, {Name: "onions"}},
		Instructions: []string{"Cook onions.", "Add stock."},
		PrepMinutes:  5,
		Servings:     2,
		Confidence:   1,
	}}
	tier := NewAIFallback(AIConfig{Ceiling: 0.7}, stub, zap.NewNop())
	cand, err := tier.TryExtract(context.Background(), page(blogPage), recipe.DomainVerdict{})
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls)
	require.LessOrEqual(t, cand.Confidence, 0.7)
	require.InDelta(t, 0.7, cand.Confidence, 1e-9)
	require.NotContains(t, stub.text, "track()")
	require.NotContains(t, stub.text, "copyright")
	require.Contains(t, stub.text, "Ingredients")
}

func TestAIFallbackSkipsNonRecipeText(t *testing.T) {
	t.Parallel()

	stub := &stubAI{}
	tier := NewAIFallback(AIConfig{}, stub, nil)
	_, err := tier.TryExtract(context.Background(), page(nonRecipePage), recipe.DomainVerdict{})
	require.ErrorIs(t, err, recipe.ErrNoRecipe)
	require.Zero(t, stub.calls)
}

func TestAIFallbackErrors(t *testing.T) {
	t.Parallel()

	malformed := &stubAI{err: errors.Join(errors.New("bad"), ai.ErrMalformedResponse)}
	_, err := NewAIFallback(AIConfig{}, malformed, nil).TryExtract(context.Background(), page(blogPage), recipe.DomainVerdict{})
	require.ErrorIs(t, err, recipe.ErrNoRecipe)

	down := &stubAI{err: recipe.NewError(recipe.CodeAIUnavailable, "down", nil)}
	_, err = NewAIFallback(AIConfig{}, down, nil).TryExtract(context.Background(), page(blogPage), recipe.DomainVerdict{})
	require.Equal(t, recipe.CodeAIUnavailable, recipe.CodeOf(err))

	empty := &stubAI{guess: recipe.StructuredGuess{Title: "x", Confidence: 0}}
	_, err = NewAIFallback(AIConfig{}, empty, nil).TryExtract(context.Background(), page(blogPage), recipe.DomainVerdict{})
	require.ErrorIs(t, err, recipe.ErrNoRecipe)

	_, err = NewAIFallback(AIConfig{}, nil, nil).TryExtract(context.Background(), page(blogPage), recipe.DomainVerdict{})
	require.ErrorIs(t, err, recipe.ErrNoRecipe)
}

func TestPipelineStructuredSuccessNeverInvokesLaterTiers(t *testing.T) {
	t.Parallel()

	adapter := &stubExtractor{tier: recipe.TierAdapter}
	aiTier := &stubExtractor{tier: recipe.TierAI}
	p := NewPipeline(zap.NewNop(),
		Stage{Extractor: NewStructured(), Min: 0.6},
		Stage{Extractor: adapter, Min: 0.5},
		Stage{Extractor: aiTier, Min: 0.4},
	)
	cand, err := p.Run(context.Background(), page(jsonLDGraphPage), recipe.DomainVerdict{})
	require.NoError(t, err)
	require.Equal(t, recipe.TierStructured, cand.Tier)
	require.Zero(t, adapter.calls)
	require.Zero(t, aiTier.calls)
}

func TestPipelineFallsThroughBelowThreshold(t *testing.T) {
	t.Parallel()

	weak := &stubExtractor{tier: recipe.TierStructured, cand: recipe.CandidateRecipe{Confidence: 0.3}}
	miss := &stubExtractor{tier: recipe.TierAdapter, err: recipe.ErrNoRecipe}
	good := &stubExtractor{tier: recipe.TierAI, cand: recipe.CandidateRecipe{Title: "x", Confidence: 0.5}}
	p := NewPipeline(nil,
		Stage{Extractor: weak, Min: 0.6},
		Stage{Extractor: miss, Min: 0.5},
		Stage{Extractor: good, Min: 0.4},
	)
	cand, err := p.Run(context.Background(), page(""), recipe.DomainVerdict{})
	require.NoError(t, err)
	require.Equal(t, recipe.TierAI, cand.Tier)
	require.Equal(t, page("").FinalURL, cand.SourceURL)
}

func TestPipelineAllTiersMiss(t *testing.T) {
	t.Parallel()

	p := NewPipeline(nil,
		Stage{Extractor: &stubExtractor{tier: recipe.TierStructured, err: recipe.ErrNoRecipe}},
		Stage{Extractor: &stubExtractor{tier: recipe.TierAI, err: errors.New("parse html")}},
	)
	_, err := p.Run(context.Background(), page(""), recipe.DomainVerdict{})
	require.Equal(t, recipe.CodeExtractionFailed, recipe.CodeOf(err))
	require.False(t, recipe.IsRetryable(err))
}

func TestPipelineSurfacesRetryableTierFailure(t *testing.T) {
	t.Parallel()

	p := NewPipeline(nil,
		Stage{Extractor: &stubExtractor{tier: recipe.TierStructured, err: recipe.ErrNoRecipe}},
		Stage{Extractor: &stubExtractor{tier: recipe.TierAI, err: recipe.NewError(recipe.CodeAIUnavailable, "down", nil)}},
	)
	_, err := p.Run(context.Background(), page(""), recipe.DomainVerdict{})
	require.Equal(t, recipe.CodeAIUnavailable, recipe.CodeOf(err))
	require.True(t, recipe.IsRetryable(err))
}

func TestPipelineHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tier := &stubExtractor{tier: recipe.TierStructured}
	_, err := NewPipeline(nil, Stage{Extractor: tier}).Run(ctx, page(""), recipe.DomainVerdict{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, tier.calls)
}

func TestDurations(t *testing.T) {
	t.Parallel()

	require.Equal(t, 90*time.Minute, parseISODuration("PT1H30M"))
	require.Equal(t, 20*time.Minute, parseISODuration("P0DT0H20M"))
	require.Equal(t, 30*time.Minute, parseISODuration("PT0.5H"))
	require.Zero(t, parseISODuration("20 minutes"))
	require.Equal(t, 80*time.Minute, parseHumanDuration("1 hr 20 mins"))
	require.Equal(t, 45*time.Minute, parseHumanDuration("45 minutes"))
	require.Equal(t, 4, parseServings("Serves 4-6"))
	require.Zero(t, parseServings("a crowd"))
}

func TestPageTextAndQuality(t *testing.T) {
	t.Parallel()

	text, err := PageText(md.NewConverter("", true, nil), []byte(blogPage), 40)
	require.NoError(t, err)
	require.LessOrEqual(t, len([]rune(text)), 40)
	require.NotContains(t, text, "Home About")

	require.Zero(t, TextQuality("short"))
	require.Greater(t, TextQuality("Ingredients: 2 cups flour. Instructions: mix, bake 20 minutes. Servings 4."), 0.6)
	require.Less(t, TextQuality("Welcome to my blog about cars and engines and more."), 0.3)
}
