package extract

import (
	"math"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

var fieldWeights = map[string]float64{
	recipe.FieldTitle:        0.20,
	recipe.FieldIngredients:  0.40,
	recipe.FieldInstructions: 0.30,
	recipe.FieldTimes:        0.05,
	recipe.FieldServings:     0.05,
}

// scoreFields fills c.FieldConfidence from what was found and returns the
// weighted completeness in [0,1]. A recipe with no ingredients or no
// instructions never scores above the remaining fields' weight.
func scoreFields(c *recipe.CandidateRecipe) float64 {
	fields := map[string]float64{
		recipe.FieldTitle:        boolScore(c.Title != ""),
		recipe.FieldIngredients:  math.Min(1, float64(len(c.Ingredients))/3),
		recipe.FieldInstructions: math.Min(1, float64(len(c.Instructions))/2),
		recipe.FieldTimes:        boolScore(c.PrepTime > 0 || c.CookTime > 0 || c.TotalTime > 0),
		recipe.FieldServings:     boolScore(c.Servings > 0),
	}
	c.FieldConfidence = fields
	total := 0.0
	for field, weight := range fieldWeights {
		total += weight * fields[field]
	}
	return clamp01(total)
}

// hasCore reports whether a candidate has the minimum to be a recipe.
func hasCore(c recipe.CandidateRecipe) bool {
	return len(c.Ingredients) > 0 && len(c.Instructions) > 0
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
