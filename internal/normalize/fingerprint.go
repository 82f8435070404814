package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Fingerprint hashes the normalized title and the sorted ingredient names.
// Quantities, units and ordering do not affect it.
func Fingerprint(title string, ingredients []recipe.Ingredient) string {
	names := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		name := fingerprintToken(ing.Name)
		if name == "" {
			name = fingerprintToken(ing.Raw)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(fingerprintToken(title)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

func fingerprintToken(s string) string {
	s = strings.ToLower(CleanText(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
