package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/ai"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// AIConfig bounds the AI fallback tier.
type AIConfig struct {
	// Ceiling caps the tier's confidence whatever the model reports.
	Ceiling  float64
	Timeout  time.Duration
	MaxChars int
	// MinTextQuality skips the call for pages that are clearly not recipes.
	MinTextQuality float64
}

// AIFallback sends cleaned page text to the AI capability.
type AIFallback struct {
	cfg       AIConfig
	extractor recipe.AIExtractor
	converter *md.Converter
	logger    *zap.Logger
}

// NewAIFallback builds the AI tier. A nil extractor makes the tier a
// permanent miss.
func NewAIFallback(cfg AIConfig, extractor recipe.AIExtractor, logger *zap.Logger) *AIFallback {
	if cfg.Ceiling <= 0 || cfg.Ceiling > 1 {
		cfg.Ceiling = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 12000
	}
	if cfg.MinTextQuality <= 0 {
		cfg.MinTextQuality = 0.3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIFallback{
		cfg:       cfg,
		extractor: extractor,
		converter: md.NewConverter("", true, nil),
		logger:    logger.Named("ai_fallback"),
	}
}

// Tier implements Extractor.
func (*AIFallback) Tier() recipe.Tier { return recipe.TierAI }

// TryExtract implements Extractor.
func (a *AIFallback) TryExtract(ctx context.Context, page recipe.CrawlResult, _ recipe.DomainVerdict) (recipe.CandidateRecipe, error) {
	if a.extractor == nil {
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	text, err := PageText(a.converter, page.Body, a.cfg.MaxChars)
	if err != nil {
		return recipe.CandidateRecipe{}, fmt.Errorf("clean page text: %w", err)
	}
	if quality := TextQuality(text); quality < a.cfg.MinTextQuality {
		a.logger.Debug("skipping ai call for low quality text",
			zap.String("url", page.URL),
			zap.Float64("quality", quality))
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	guess, err := a.extractor.Extract(ctx, text, a.cfg.Timeout)
	if errors.Is(err, ai.ErrMalformedResponse) {
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	if err != nil {
		return recipe.CandidateRecipe{}, err
	}
	cand := candidateFromGuess(guess)
	if !hasCore(cand) || guess.Confidence == 0 {
		return recipe.CandidateRecipe{}, recipe.ErrNoRecipe
	}
	cand.SourceURL = page.FinalURL
	completeness := scoreFields(&cand)
	cand.Confidence = min(a.cfg.Ceiling, completeness*guess.Confidence)
	return cand, nil
}

func candidateFromGuess(g recipe.StructuredGuess) recipe.CandidateRecipe {
	return recipe.CandidateRecipe{
		Title:        g.Title,
		Description:  g.Description,
		Ingredients:  g.Ingredients,
		Instructions: g.Instructions,
		PrepTime:     time.Duration(g.PrepMinutes) * time.Minute,
		CookTime:     time.Duration(g.CookMinutes) * time.Minute,
		TotalTime:    time.Duration(g.PrepMinutes+g.CookMinutes) * time.Minute,
		Servings:     g.Servings,
		Cuisine:      g.Cuisine,
		Difficulty:   g.Difficulty,
		Tags:         g.Tags,
	}
}
