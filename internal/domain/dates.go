package domain

import (
	"fmt"
	"strings"
	"time"
)

// uniDateLayout keeps minute precision in UTC.
const uniDateLayout = "2006-01-02T15:04Z"

// UniDate renders t in a universal, minute-precision form so that instants
// written with different fractional seconds or offsets compare equal.
// The zero time renders as "".
func UniDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Minute).Format(uniDateLayout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02",
}

// ParseTimestamp parses the date representations used by the registry and
// the stores. An empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders t at full precision, or "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
