package feed

import (
	"fmt"
	"strings"
	"time"

	"masterboxer.com/vibe-feed/models"
)

// DateMode selects which timestamp orders a post chronologically.
type DateMode string

const (
	DatePosted  DateMode = "posted"
	DateVisited DateMode = "visited"
)

// ParseDateMode accepts the query form of a date mode; empty means posted.
func ParseDateMode(raw string) (DateMode, error) {
	switch DateMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DatePosted:
		return DatePosted, nil
	case DateVisited:
		return DateVisited, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDateMode, raw)
}

// Layouts accepted for stored timestamps, most specific first. The last two
// are what browser date/datetime-local inputs produce.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. ok is false for empty or
// malformed input.
func ParseTimestamp(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// SortKey resolves the epoch-millisecond timestamp used to order p under mode.
// In posted mode a missing or malformed createdAt falls back to visitDate.
// ok is false when no usable timestamp exists.
func SortKey(p models.Post, mode DateMode) (ms int64, ok bool) {
	if mode == DatePosted && p.CreatedAt != nil {
		if t, ok := ParseTimestamp(*p.CreatedAt); ok {
			return t.UnixMilli(), true
		}
	}
	t, ok := ParseTimestamp(p.VisitDate)
	if !ok {
		return 0, false
	}
	return t.UnixMilli(), true
}
