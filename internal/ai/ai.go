// Package ai turns page text into a structured recipe guess through a
// pluggable text-generation provider.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// ErrMalformedResponse marks provider output that is not a usable guess.
var ErrMalformedResponse = errors.New("malformed ai response")

// Generator is a text-generation provider.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Extractor implements recipe.AIExtractor over a Generator.
type Extractor struct {
	gen    Generator
	logger *zap.Logger
}

// NewExtractor wraps gen.
func NewExtractor(gen Generator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{gen: gen, logger: logger.Named("ai")}
}

// Extract asks the provider for a recipe guess within timeout. Provider
// failures become retryable AIUnavailable errors; unusable output wraps
// ErrMalformedResponse.
func (e *Extractor) Extract(ctx context.Context, text string, timeout time.Duration) (recipe.StructuredGuess, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	raw, err := e.gen.Generate(callCtx, SystemPrompt, Prompt(text))
	if err != nil {
		if ctx.Err() != nil {
			return recipe.StructuredGuess{}, fmt.Errorf("ai extract: %w", ctx.Err())
		}
		return recipe.StructuredGuess{}, recipe.NewError(recipe.CodeAIUnavailable,
			"the recipe reader is unavailable right now", fmt.Errorf("%s: %w", e.gen.Name(), err))
	}
	guess, err := ParseGuess(raw)
	if err != nil {
		e.logger.Debug("discarding ai response",
			zap.String("provider", e.gen.Name()),
			zap.Int("response_chars", len(raw)),
			zap.Error(err))
		return recipe.StructuredGuess{}, err
	}
	e.logger.Debug("ai guess parsed",
		zap.String("provider", e.gen.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("self_confidence", guess.Confidence))
	return guess, nil
}
