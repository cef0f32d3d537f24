package event

import (
	"strings"
	"time"
)

// dateLayouts covers the formats the sources have been observed to emit,
// from full ISO timestamps down to bare "2 Jan 2006" style strings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2 Jan 2006 15:04",
	"2 January 2006 15:04",
	"2 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006 15:04",
	"02/01/2006",
	"01/02/2006",
}

// ParseDate attempts to resolve a raw date string into a time.Time.
// Returns the zero value when no known layout matches; callers keep the
// raw string as DateString either way.
func ParseDate(dateString string) time.Time {
	s := strings.TrimSpace(dateString)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DisplayDate returns a human-readable date, preferring the resolved
// timestamp and falling back to the source's own text.
func (e *Event) DisplayDate() string {
	if !e.DateTime.IsZero() {
		return e.DateTime.Format("Mon, 2 Jan 2006 3:04 PM")
	}
	return e.DateString
}

// IsUpcoming reports whether the event is in the future. Events whose date
// cannot be resolved are treated as upcoming (safer default).
func (e *Event) IsUpcoming() bool {
	if e.DateTime.IsZero() {
		return true
	}
	return e.DateTime.After(time.Now())
}
