package normalize

import (
	"math"
	"strconv"
)

var commonFractions = []struct {
	value float64
	text  string
}{
	{0.125, "1/8"}, {0.25, "1/4"}, {1.0 / 3, "1/3"}, {0.375, "3/8"}, {0.5, "1/2"},
	{0.625, "5/8"}, {2.0 / 3, "2/3"}, {0.75, "3/4"}, {0.875, "7/8"},
}

// formatQuantity renders q the way a cook writes it: "1 1/2" rather
// than "1.5".
func formatQuantity(q float64) (string, bool) {
	if q <= 0 {
		return "", false
	}
	whole, frac := math.Modf(q)
	if frac < 0.01 {
		return strconv.FormatFloat(whole, 'f', -1, 64), true
	}
	for _, cf := range commonFractions {
		if math.Abs(frac-cf.value) < 0.01 {
			if whole == 0 {
				return cf.text, true
			}
			return strconv.FormatFloat(whole, 'f', -1, 64) + " " + cf.text, true
		}
	}
	return strconv.FormatFloat(q, 'f', 2, 64), true
}
