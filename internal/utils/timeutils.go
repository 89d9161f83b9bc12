package utils

import (
	"fmt"
	"time"
)

// ParseEventTime parses a tracker timestamp. Trackers emit RFC3339 with or
// without sub-second precision, so both layouts are accepted.
func ParseEventTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

// AgeDays returns the age of ts relative to now in fractional days. A zero or
// future ts yields zero.
func AgeDays(ts, now time.Time) float64 {
	if ts.IsZero() || !ts.Before(now) {
		return 0
	}
	return now.Sub(ts).Hours() / 24
}
