// Package extract turns fetched pages into candidate recipes through an
// ordered list of extraction tiers: structured data, per-site adapters and
// finally an AI fallback.
package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Extractor is one extraction tier. Implementations return recipe.ErrNoRecipe
// when the page holds nothing they can use.
type Extractor interface {
	Tier() recipe.Tier
	TryExtract(ctx context.Context, page recipe.CrawlResult, verdict recipe.DomainVerdict) (recipe.CandidateRecipe, error)
}

// Stage pairs a tier with the minimum confidence that makes it final.
type Stage struct {
	Extractor Extractor
	Min       float64
}

// Pipeline runs stages in order and stops at the first accepted candidate.
type Pipeline struct {
	stages []Stage
	logger *zap.Logger
}

// NewPipeline builds a Pipeline.
func NewPipeline(logger *zap.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{stages: stages, logger: logger.Named("extract")}
}

// Run extracts a candidate from page. When no tier accepts it returns
// ExtractionFailed, unless a tier failed for a retryable reason, in which
// case that failure is returned so the job can try again.
func (p *Pipeline) Run(ctx context.Context, page recipe.CrawlResult, verdict recipe.DomainVerdict) (recipe.CandidateRecipe, error) {
	var retryable error
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return recipe.CandidateRecipe{}, fmt.Errorf("extract: %w", err)
		}
		tier := stage.Extractor.Tier()
		cand, err := stage.Extractor.TryExtract(ctx, page, verdict)
		switch {
		case errors.Is(err, recipe.ErrNoRecipe):
			metrics.ObserveExtraction(string(tier), "miss")
			continue
		case err != nil:
			if ctx.Err() != nil {
				return recipe.CandidateRecipe{}, fmt.Errorf("extract %s: %w", tier, ctx.Err())
			}
			metrics.ObserveExtraction(string(tier), "error")
			p.logger.Warn("extraction tier failed",
				zap.String("tier", string(tier)),
				zap.String("url", page.URL),
				zap.Error(err))
			if recipe.IsRetryable(err) {
				retryable = err
			}
			continue
		}
		if cand.Confidence < stage.Min {
			metrics.ObserveExtraction(string(tier), "below_threshold")
			p.logger.Debug("extraction below tier threshold",
				zap.String("tier", string(tier)),
				zap.Float64("confidence", cand.Confidence),
				zap.Float64("min", stage.Min))
			continue
		}
		metrics.ObserveExtraction(string(tier), "accepted")
		cand.Tier = tier
		if cand.SourceURL == "" {
			cand.SourceURL = page.FinalURL
		}
		return cand, nil
	}
	if retryable != nil {
		return recipe.CandidateRecipe{}, retryable
	}
	return recipe.CandidateRecipe{}, recipe.NewError(recipe.CodeExtractionFailed,
		"no recipe could be found on this page", recipe.ErrNoRecipe)
}
