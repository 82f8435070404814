package normalize

import (
	"strings"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

const bulletChars = "-–•*·▢□◦ "

// ParseIngredient splits a raw ingredient line into quantity, unit, name and
// note. Lines it cannot structure keep the whole text as the name.
func ParseIngredient(line string) recipe.Ingredient {
	raw := CleanText(line)
	ing := recipe.Ingredient{Raw: raw}
	s := strings.TrimLeft(raw, bulletChars)
	s = expandFractions(s)

	qty, rest := splitQuantity(s)
	ing.Quantity = qty

	var packNote string
	if qty > 0 && strings.HasPrefix(rest, "(") {
		if end := strings.IndexByte(rest, ')'); end > 0 {
			packNote = strings.TrimSpace(rest[1:end])
			rest = strings.TrimSpace(rest[end+1:])
		}
	}

	unit, rest := splitUnit(rest)
	ing.Unit = unit
	if unit != "" {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "of "))
	}

	name, note := splitNote(rest)
	ing.Name = name
	ing.Note = joinNotes(packNote, note)
	if ing.Name == "" {
		ing.Name = raw
	}
	return ing
}

// splitUnit consumes a leading unit, trying two-word spellings first.
func splitUnit(s string) (string, string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", s
	}
	if len(fields) >= 2 {
		if unit, _, ok := CanonicalUnit(fields[0] + " " + fields[1]); ok {
			return unit, strings.Join(fields[2:], " ")
		}
	}
	// A lone "c" or "l" is only a unit when something follows it.
	if unit, _, ok := CanonicalUnit(fields[0]); ok && len(fields) > 1 {
		return unit, strings.Join(fields[1:], " ")
	}
	return "", s
}

func splitNote(s string) (string, string) {
	s = strings.TrimSpace(s)
	var notes []string
	for {
		open := strings.IndexByte(s, '(')
		if open < 0 {
			break
		}
		end := strings.IndexByte(s[open:], ')')
		if end < 0 {
			break
		}
		notes = append(notes, strings.TrimSpace(s[open+1:open+end]))
		s = strings.TrimSpace(s[:open] + " " + s[open+end+1:])
	}
	if name, note, ok := strings.Cut(s, ","); ok {
		s = name
		notes = append(notes, strings.TrimSpace(note))
	}
	return strings.Join(strings.Fields(s), " "), joinNotes(notes...)
}

func joinNotes(notes ...string) string {
	kept := notes[:0:0]
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, "; ")
}
