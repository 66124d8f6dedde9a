package timespec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a duration specification.
// Supports two formats:
//   - Go duration format: "30s", "1m30s", "500ms"
//   - Bare seconds: "30", "2.5"
//
// Negative durations are rejected.
func ParseDuration(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty duration specification")
	}

	// Try bare seconds first
	if secs, err := strconv.ParseFloat(spec, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid duration specification: %s (must be a non-negative number of seconds)", spec)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid duration specification: %s (use seconds like '30' or a duration like '1m30s')", spec)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration specification: %s (must not be negative)", spec)
	}
	return d, nil
}

// Seconds formats a duration as seconds truncated to two decimals,
// e.g. 2.345s -> "2.34".
func Seconds(d time.Duration) string {
	hundredths := int64(d / (10 * time.Millisecond))
	return strconv.FormatFloat(float64(hundredths)/100, 'f', -1, 64)
}
