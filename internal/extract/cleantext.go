package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const noiseSelector = "script, style, noscript, nav, footer, header, aside, form, iframe, svg, button"

// PageText reduces a page to its main content as markdown, truncated to
// maxChars runes. Markdown keeps the list structure the AI tier relies on.
func PageText(converter *md.Converter, body []byte, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()
	content := doc.Find("main, article, [role=main], #content, .content").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}
	html, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}
	text, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return truncateRunes(collapseBlankLines(text), maxChars), nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

var qualityKeywords = []string{
	"ingredients", "instructions", "recipe", "cook", "bake", "mix",
	"cups", "tbsp", "tsp", "minutes", "servings", "prep time",
}

// TextQuality estimates how recipe-like text is from keyword hits and length.
func TextQuality(text string) float64 {
	if utf8.RuneCountInString(text) < 20 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range qualityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	keywordScore := clamp01(float64(hits) / 5)
	lengthScore := clamp01(float64(len(text)) / 500)
	return keywordScore*0.7 + lengthScore*0.3
}
