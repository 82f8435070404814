package normalize

import "strings"

// UnitKind groups canonical units by what they measure.
type UnitKind string

const (
	// UnitVolume covers cups, spoons, and metric volumes.
	UnitVolume UnitKind = "volume"
	// UnitWeight covers metric and imperial masses.
	UnitWeight UnitKind = "weight"
	// UnitCount covers discrete items such as cloves or cans.
	UnitCount UnitKind = "count"
)

type unitDef struct {
	canonical string
	kind      UnitKind
	aliases   []string
}

var unitDefs = []unitDef{
	{"cup", UnitVolume, []string{"cup", "cups", "c"}},
	{"tbsp", UnitVolume, []string{"tablespoon", "tablespoons", "tbsp", "tbsps", "tbs", "tbl", "tbls"}},
	{"tsp", UnitVolume, []string{"teaspoon", "teaspoons", "tsp", "tsps"}},
	{"ml", UnitVolume, []string{"milliliter", "milliliters", "millilitre", "millilitres", "ml", "mls"}},
	{"l", UnitVolume, []string{"liter", "liters", "litre", "litres", "l"}},
	{"fl oz", UnitVolume, []string{"fl oz", "fl. oz", "fluid ounce", "fluid ounces", "floz"}},
	{"pint", UnitVolume, []string{"pint", "pints", "pt"}},
	{"quart", UnitVolume, []string{"quart", "quarts", "qt"}},
	{"gallon", UnitVolume, []string{"gallon", "gallons", "gal"}},
	{"mg", UnitWeight, []string{"milligram", "milligrams", "mg"}},
	{"g", UnitWeight, []string{"gram", "grams", "g", "gr"}},
	{"kg", UnitWeight, []string{"kilogram", "kilograms", "kg", "kgs"}},
	{"oz", UnitWeight, []string{"ounce", "ounces", "oz"}},
	{"lb", UnitWeight, []string{"pound", "pounds", "lb", "lbs"}},
	{"pinch", UnitCount, []string{"pinch", "pinches"}},
	{"dash", UnitCount, []string{"dash", "dashes"}},
	{"clove", UnitCount, []string{"clove", "cloves"}},
	{"can", UnitCount, []string{"can", "cans"}},
	{"piece", UnitCount, []string{"piece", "pieces", "pc", "pcs"}},
	{"slice", UnitCount, []string{"slice", "slices"}},
	{"stick", UnitCount, []string{"stick", "sticks"}},
	{"package", UnitCount, []string{"package", "packages", "pkg", "packet", "packets"}},
	{"bunch", UnitCount, []string{"bunch", "bunches"}},
	{"sprig", UnitCount, []string{"sprig", "sprigs"}},
	{"handful", UnitCount, []string{"handful", "handfuls"}},
	{"head", UnitCount, []string{"head", "heads"}},
}

var unitIndex = func() map[string]unitDef {
	idx := make(map[string]unitDef)
	for _, def := range unitDefs {
		for _, alias := range def.aliases {
			idx[alias] = def
		}
	}
	return idx
}()

// CanonicalUnit maps a unit spelling onto the canonical vocabulary.
func CanonicalUnit(token string) (string, UnitKind, bool) {
	key := strings.ToLower(strings.TrimSpace(token))
	key = strings.TrimSuffix(key, ".")
	def, ok := unitIndex[key]
	if !ok {
		return "", "", false
	}
	return def.canonical, def.kind, true
}
