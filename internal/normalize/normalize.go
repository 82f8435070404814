// Package normalize cleans candidate recipes into canonical form and
// computes the keys used for deduplication.
package normalize

import (
	"strings"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

// Recipe returns a copy of c with every text field cleaned, ingredient lines
// parsed onto the canonical unit vocabulary and instructions split into steps.
func Recipe(c recipe.CandidateRecipe) recipe.CandidateRecipe {
	out := c
	out.Title = CleanText(c.Title)
	out.Description = CleanText(c.Description)
	out.Cuisine = CleanText(c.Cuisine)
	out.Difficulty = strings.ToLower(CleanText(c.Difficulty))
	if out.Difficulty != "" && !difficulties[out.Difficulty] {
		out.Difficulty = ""
	}
	if out.Servings < 0 {
		out.Servings = 0
	}
	out.Tags = cleanTags(c.Tags)
	out.Ingredients = normalizeIngredients(c.Ingredients)
	out.Instructions = SplitInstructions(c.Instructions)
	if c.FieldConfidence != nil {
		out.FieldConfidence = make(map[string]float64, len(c.FieldConfidence))
		for k, v := range c.FieldConfidence {
			out.FieldConfidence[k] = v
		}
	}
	return out
}

// Key builds the duplicate key for a normalized recipe.
func Key(scope, canonicalURL string, c recipe.CandidateRecipe) recipe.DuplicateKey {
	return recipe.DuplicateKey{
		Scope:        scope,
		CanonicalURL: canonicalURL,
		Fingerprint:  Fingerprint(c.Title, c.Ingredients),
	}
}

func normalizeIngredients(in []recipe.Ingredient) []recipe.Ingredient {
	out := make([]recipe.Ingredient, 0, len(in))
	for _, ing := range in {
		if strings.TrimSpace(ing.Name) == "" {
			if strings.TrimSpace(ing.Raw) == "" {
				continue
			}
			out = append(out, ParseIngredient(ing.Raw))
			continue
		}
		out = append(out, cleanStructured(ing))
	}
	return out
}

// cleanStructured tidies an ingredient that arrived already split, as AI
// guesses do.
func cleanStructured(ing recipe.Ingredient) recipe.Ingredient {
	out := recipe.Ingredient{
		Quantity: ing.Quantity,
		Name:     CleanText(ing.Name),
		Note:     CleanText(ing.Note),
		Raw:      CleanText(ing.Raw),
	}
	if out.Quantity < 0 {
		out.Quantity = 0
	}
	unit := CleanText(ing.Unit)
	if canonical, _, ok := CanonicalUnit(unit); ok {
		unit = canonical
	}
	out.Unit = strings.ToLower(unit)
	if out.Raw == "" {
		out.Raw = rawLine(out)
	}
	return out
}

func rawLine(ing recipe.Ingredient) string {
	var parts []string
	if q, ok := formatQuantity(ing.Quantity); ok {
		parts = append(parts, q)
	}
	if ing.Unit != "" {
		parts = append(parts, ing.Unit)
	}
	parts = append(parts, ing.Name)
	line := strings.Join(parts, " ")
	if ing.Note != "" {
		line += ", " + ing.Note
	}
	return line
}

func cleanTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(CleanText(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
