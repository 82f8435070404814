package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var unicodeFractions = map[rune]string{
	'½': "1/2", '⅓': "1/3", '⅔': "2/3", '¼': "1/4", '¾': "3/4",
	'⅕': "1/5", '⅖': "2/5", '⅗': "3/5", '⅘': "4/5", '⅙': "1/6",
	'⅚': "5/6", '⅛': "1/8", '⅜': "3/8", '⅝': "5/8", '⅞': "7/8",
}

const numberPattern = `\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?|\.\d+`

var leadingQuantity = regexp.MustCompile(`^(` + numberPattern + `)(?:\s*(?:-|–|—|to)\s*(` + numberPattern + `))?`)

// expandFractions rewrites unicode vulgar fractions as ASCII so "1½" reads
// as "1 1/2". The fraction slash is normalized too.
func expandFractions(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if frac, ok := unicodeFractions[r]; ok {
			b.WriteByte(' ')
			b.WriteString(frac)
			continue
		}
		if r == '⁄' {
			b.WriteByte('/')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// ParseQuantity reads a quantity such as "2", "1.5", "1 1/2", "½" or a range
// like "2-3". Ranges resolve to their midpoint.
func ParseQuantity(s string) (float64, bool) {
	q, rest := splitQuantity(expandFractions(s))
	return q, q > 0 && strings.TrimSpace(rest) == ""
}

// splitQuantity consumes a leading quantity from s, which must already have
// its fractions expanded.
func splitQuantity(s string) (float64, string) {
	m := leadingQuantity.FindStringSubmatchIndex(s)
	if m == nil {
		return 0, s
	}
	low, ok := parseNumber(s[m[2]:m[3]])
	if !ok {
		return 0, s
	}
	value := low
	if m[4] >= 0 {
		if high, ok := parseNumber(s[m[4]:m[5]]); ok && high >= low {
			value = (low + high) / 2
		}
	}
	return value, strings.TrimSpace(s[m[1]:])
}

func parseNumber(s string) (float64, bool) {
	total := 0.0
	for _, field := range strings.Fields(s) {
		if num, den, isFrac := strings.Cut(field, "/"); isFrac {
			n, err1 := strconv.ParseFloat(num, 64)
			d, err2 := strconv.ParseFloat(den, 64)
			if err1 != nil || err2 != nil || d == 0 {
				return 0, false
			}
			total += n / d
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, false
		}
		total += v
	}
	return total, true
}
