package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDuration = regexp.MustCompile(`(?i)^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
	humanPart   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(days?|d|hours?|hrs?|h|minutes?|mins?|m)\b`)
)

// parseISODuration reads schema.org durations such as "PT1H30M".
func parseISODuration(s string) time.Duration {
	m := isoDuration.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0
		}
		total += time.Duration(v * float64(unit))
	}
	return total
}

// parseHumanDuration reads page text such as "1 hr 20 mins". ISO strings are
// accepted as well.
func parseHumanDuration(s string) time.Duration {
	if d := parseISODuration(s); d > 0 {
		return d
	}
	var total time.Duration
	for _, m := range humanPart.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "d"):
			total += time.Duration(v * float64(24*time.Hour))
		case strings.HasPrefix(unit, "h"):
			total += time.Duration(v * float64(time.Hour))
		default:
			total += time.Duration(v * float64(time.Minute))
		}
	}
	return total
}

var firstInt = regexp.MustCompile(`\d+`)

// parseServings reads the first whole number from a yield such as
// "Serves 4-6" or "12 cookies".
func parseServings(s string) int {
	n, err := strconv.Atoi(firstInt.FindString(s))
	if err != nil || n <= 0 || n > 1000 {
		return 0
	}
	return n
}
