package parse

import (
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the only accepted calendar date shape.
const DateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// EventDate validates a YYYY-MM-DD calendar date and returns it unchanged.
// Shapes like "01/07/2024" or "2024-1-7" are rejected, as are impossible
// dates such as "2024-02-30".
func EventDate(raw string) (string, error) {
	if !dateRe.MatchString(raw) {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	if _, err := time.Parse(DateLayout, raw); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return raw, nil
}

// OptionalEventDate is EventDate but accepts the empty string.
func OptionalEventDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	return EventDate(raw)
}

// DayBounds returns the [start, end) instants of a calendar date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	if _, err := EventDate(date); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 1), nil
}

// SameDay reports whether t falls on the calendar date in loc.
func SameDay(t time.Time, date string, loc *time.Location) bool {
	return t.In(loc).Format(DateLayout) == date
}
