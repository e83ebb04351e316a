package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([A-Za-z]+)$`)

var durationUnits = map[string]time.Duration{
	"s":   time.Second,
	"sec": time.Second,
	"m":   time.Minute,
	"min": time.Minute,
	"h":   time.Hour,
	"hr":  time.Hour,
	"d":   24 * time.Hour,
	"day": 24 * time.Hour,
}

// ParseDuration parses a window duration of the form <positive integer><unit>,
// where unit is one of s, sec, m, min, h, hr, d or day (case-insensitive).
// Examples: "30s", "5min", "2h", "1d".
func ParseDuration(s string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("invalid duration %q: expected <positive integer><unit>", s)
	}

	unit, ok := durationUnits[strings.ToLower(match[2])]
	if !ok {
		return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, match[2])
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", s)
	}
	if value > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid duration %q: out of range", s)
	}

	return time.Duration(value) * unit, nil
}

// ParseTimeRef parses an absolute timestamp or a relative duration.
// Relative values are subtracted from the current time (e.g. "1h", "30min", "1h30m").
func ParseTimeRef(s string) (time.Time, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return time.Time{}, fmt.Errorf("time reference is empty")
	}

	if t, err := parseAbsoluteTime(input); err == nil {
		return t, nil
	}

	d, err := ParseDuration(input)
	if err != nil {
		// Fall back to Go's compound durations such as "1h30m".
		var goErr error
		d, goErr = time.ParseDuration(input)
		if goErr != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("invalid time reference: %s", input)
		}
	}

	return time.Now().Add(-d), nil
}

func parseAbsoluteTime(input string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid absolute time: %s", input)
}
