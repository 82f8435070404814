package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	blockEnd    = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/li|/div|/h[1-6]|/tr)\s*>`)
)

// CleanText strips markup and entities and collapses whitespace to single
// spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(stripMarkup(s)), " ")
}

// CleanLines is CleanText that keeps line structure, dropping blank lines.
func CleanLines(s string) []string {
	var out []string
	for _, line := range strings.Split(stripMarkup(s), "\n") {
		if cleaned := strings.Join(strings.Fields(line), " "); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	s = blockEnd.ReplaceAllString(s, "$0\n")
	return html.UnescapeString(stripPolicy.Sanitize(s))
}
