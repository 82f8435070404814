package fetcher

import (
	"bytes"
	"net/http"
	"strings"
)

// ShellDetector spots client-rendered shells that need a browser to show
// their content.
type ShellDetector struct {
	BodyLengthThreshold int
}

// NewShellDetector creates a detector; threshold defaults to 2048 bytes.
func NewShellDetector(threshold int) *ShellDetector {
	if threshold <= 0 {
		threshold = 2048
	}
	return &ShellDetector{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

var recipeMarkers = [][]byte{
	[]byte(`"@type":"recipe"`),
	[]byte(`"@type": "recipe"`),
	[]byte("schema.org/recipe"),
}

// ShouldRender decides whether a plain response should be re-fetched through
// the headless renderer.
func (d *ShellDetector) ShouldRender(page Page) bool {
	if page.StatusCode != http.StatusOK {
		return false
	}
	body := page.Body
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	// Server-rendered structured data is all extraction needs.
	for _, marker := range recipeMarkers {
		if bytes.Contains(lower, marker) {
			return false
		}
	}
	if len(body) < d.BodyLengthThreshold && scriptDensityHigh(string(lower)) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(lower string) bool {
	total := len(lower)
	if total == 0 {
		return false
	}
	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1
		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
