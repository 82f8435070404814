package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	stepPrefix = regexp.MustCompile(`(?i)^(?:step\s*)?\d{1,2}\s*[.):](?:\s+|$)`)
	inlineStep = regexp.MustCompile(`(?i)(?:^|\s)(?:step\s*)?(\d{1,2})[.)]\s+`)
)

// SplitInstructions turns instruction blocks into ordered single steps.
// Blocks are split on line breaks and on inline "1. ... 2. ..." numbering;
// step numbers are removed. A leading decimal such as "1.5 hours" is text,
// not a step number.
func SplitInstructions(blocks []string) []string {
	var steps []string
	for _, block := range blocks {
		for _, line := range CleanLines(block) {
			for _, part := range splitNumbered(line) {
				part = strings.TrimSpace(stepPrefix.ReplaceAllString(part, ""))
				if part != "" {
					steps = append(steps, part)
				}
			}
		}
	}
	return steps
}

// splitNumbered splits a line at inline step numbers, but only when they
// count up from one so "bake for 10. minutes" style text is left alone.
func splitNumbered(line string) []string {
	matches := inlineStep.FindAllStringSubmatchIndex(line, -1)
	if len(matches) < 2 {
		return []string{line}
	}
	for i, m := range matches {
		n, err := strconv.Atoi(line[m[2]:m[3]])
		if err != nil || n != i+1 {
			return []string{line}
		}
	}
	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		end := len(line)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		parts = append(parts, line[m[1]:end])
	}
	if lead := strings.TrimSpace(line[:matches[0][0]]); lead != "" {
		parts = append([]string{lead}, parts...)
	}
	return parts
}
