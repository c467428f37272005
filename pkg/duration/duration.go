// Package duration renders track lengths as clock strings.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
)

// Format renders seconds as M:SS, switching to H:MM:SS only once the
// minute count exceeds 60. Zero or negative input yields "0:00".
func Format(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}

	minutes := seconds / 60
	secs := seconds % 60

	if minutes > 60 {
		return fmt.Sprintf("%d:%02d:%02d", minutes/60, minutes%60, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// Seconds truncates a fractional duration to whole seconds.
func Seconds(f float64) int {
	if f <= 0 {
		return 0
	}
	return int(f)
}

var isoRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISO8601 converts an ISO 8601 duration such as PT1H2M3S into seconds.
// Unparseable input yields 0.
func ParseISO8601(s string) int {
	m := isoRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}
