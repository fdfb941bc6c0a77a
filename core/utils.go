package core

import (
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Now returns the current time in UTC, truncated to the microsecond
// (postgres timestamptz precision; keeps round-tripped values comparable).
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// TimePtr returns nil for the zero time, else a pointer to t.
// Bridges "not provided" inputs and nullable columns.
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
