package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

type rawGuess struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	PrepMinutes  flexNumber      `json:"prep_time_minutes"`
	CookMinutes  flexNumber      `json:"cook_time_minutes"`
	Servings     flexNumber      `json:"servings"`
	Difficulty   string          `json:"difficulty_level"`
	Cuisine      *string         `json:"cuisine_type"`
	Ingredients  json.RawMessage `json:"ingredients"`
	Instructions json.RawMessage `json:"instructions"`
	Tags         json.RawMessage `json:"tags"`
	Confidence   flexNumber      `json:"confidence_score"`
}

type rawIngredient struct {
	Name     string     `json:"name"`
	Quantity flexNumber `json:"quantity"`
	Unit     string     `json:"unit"`
	Notes    string     `json:"preparation_notes"`
	Note     string     `json:"note"`
}

// flexNumber accepts numbers, numeric strings and null.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNumber(v)
	return nil
}

// ParseGuess cleans a provider response into a validated guess: code fences
// are stripped, the outermost JSON object is decoded, the confidence is
// clamped to [0,1] and an unknown difficulty becomes "medium".
func ParseGuess(raw string) (recipe.StructuredGuess, error) {
	body := extractJSON(raw)
	if body == "" {
		return recipe.StructuredGuess{}, fmt.Errorf("no json object: %w", ErrMalformedResponse)
	}
	var rg rawGuess
	if err := json.Unmarshal([]byte(body), &rg); err != nil {
		return recipe.StructuredGuess{}, fmt.Errorf("decode guess: %v: %w", err, ErrMalformedResponse)
	}
	guess := recipe.StructuredGuess{
		Title:        strings.TrimSpace(rg.Title),
		Description:  strings.TrimSpace(rg.Description),
		PrepMinutes:  nonNegativeInt(rg.PrepMinutes),
		CookMinutes:  nonNegativeInt(rg.CookMinutes),
		Servings:     nonNegativeInt(rg.Servings),
		Difficulty:   strings.ToLower(strings.TrimSpace(rg.Difficulty)),
		Ingredients:  decodeIngredients(rg.Ingredients),
		Instructions: decodeInstructions(rg.Instructions),
		Tags:         decodeStrings(rg.Tags),
		Confidence:   min(1, max(0, float64(rg.Confidence))),
	}
	if rg.Cuisine != nil {
		guess.Cuisine = strings.TrimSpace(*rg.Cuisine)
	}
	switch guess.Difficulty {
	case "easy", "medium", "hard":
	default:
		guess.Difficulty = "medium"
	}
	return guess, nil
}

func extractJSON(raw string) string {
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func decodeIngredients(data json.RawMessage) []recipe.Ingredient {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]recipe.Ingredient, 0, len(items))
	for _, item := range items {
		var line string
		if err := json.Unmarshal(item, &line); err == nil {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, recipe.Ingredient{Raw: line})
			}
			continue
		}
		var ri rawIngredient
		if err := json.Unmarshal(item, &ri); err != nil || strings.TrimSpace(ri.Name) == "" {
			continue
		}
		note := ri.Notes
		if note == "" {
			note = ri.Note
		}
		out = append(out, recipe.Ingredient{
			Quantity: max(0, float64(ri.Quantity)),
			Unit:     strings.TrimSpace(ri.Unit),
			Name:     strings.TrimSpace(ri.Name),
			Note:     strings.TrimSpace(note),
		})
	}
	return out
}

// decodeInstructions accepts a list of steps or one block of text.
func decodeInstructions(data json.RawMessage) []string {
	if steps := decodeStrings(data); steps != nil {
		return steps
	}
	var block string
	if err := json.Unmarshal(data, &block); err == nil && strings.TrimSpace(block) != "" {
		return []string{strings.TrimSpace(block)}
	}
	return nil
}

func decodeStrings(data json.RawMessage) []string {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func nonNegativeInt(n flexNumber) int {
	if n <= 0 {
		return 0
	}
	return int(n)
}
