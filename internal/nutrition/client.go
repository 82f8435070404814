// Package nutrition calls the external nutrition engine.
package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// ErrDisabled is returned when no nutrition endpoint is configured.
var ErrDisabled = errors.New("nutrition engine not configured")

// Config points the client at the engine.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	APIKey   string
}

// Client posts ingredient lists to the engine's compute endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("nutrition endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

type ingredientRequest struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type computeRequest struct {
	Servings    int                 `json:"servings"`
	Ingredients []ingredientRequest `json:"ingredients"`
}

// Compute implements recipe.NutritionCalculator. Facts are per serving.
func (c *Client) Compute(ctx context.Context, ingredients []recipe.Ingredient, servings int) (recipe.NutritionFacts, error) {
	if servings <= 0 {
		servings = 1
	}
	req := computeRequest{Servings: servings, Ingredients: make([]ingredientRequest, 0, len(ingredients))}
	for _, ing := range ingredients {
		req.Ingredients = append(req.Ingredients, ingredientRequest{Name: ing.Name, Quantity: ing.Quantity, Unit: ing.Unit})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return recipe.NutritionFacts{}, fmt.Errorf("marshal nutrition request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return recipe.NutritionFacts{}, fmt.Errorf("build nutrition request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return recipe.NutritionFacts{}, recipe.NewError(recipe.CodeNutritionCalculationFailed, "nutrition engine unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return recipe.NutritionFacts{}, recipe.NewError(recipe.CodeNutritionCalculationFailed,
			fmt.Sprintf("nutrition engine returned HTTP %d", resp.StatusCode), nil)
	}
	var facts recipe.NutritionFacts
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&facts); err != nil {
		return recipe.NutritionFacts{}, recipe.NewError(recipe.CodeNutritionCalculationFailed, "nutrition engine returned malformed data", err)
	}
	return facts, nil
}

// Disabled is the calculator used when no endpoint is configured.
type Disabled struct{}

// Compute always fails with ErrDisabled.
func (Disabled) Compute(context.Context, []recipe.Ingredient, int) (recipe.NutritionFacts, error) {
	return recipe.NutritionFacts{}, recipe.NewError(recipe.CodeNutritionCalculationFailed, "nutrition is not available", ErrDisabled)
}
