package clock

import (
	"errors"
	"time"
)

// ErrInvalidFormat is returned when a date string matches neither the
// canonical pattern nor the year-less variant.
var ErrInvalidFormat = errors.New("invalid date format")

const (
	// canonicalPattern is the single storage/display pattern. Stored date
	// columns hold exactly this shape, so lexicographic order equals
	// chronological order.
	canonicalPattern = "2006-01-02T15:04"
	// yearlessPattern is the accepted short-hand for user input.
	yearlessPattern = "01-02T15:04"
)

// Codec converts between the canonical local-time string representation
// and an in-memory instant. The reference location is injected at
// construction; there are no package-level time globals.
type Codec struct {
	loc *time.Location
}

// NewCodec returns a Codec interpreting all text in loc.
func NewCodec(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	return &Codec{loc: loc}
}

// Location returns the reference location the codec renders in.
func (c *Codec) Location() *time.Location {
	return c.loc
}

// Format renders t using the canonical pattern in the reference zone.
// Format is the exact inverse of ParseCanonical for any minute-resolution
// instant.
func (c *Codec) Format(t time.Time) string {
	return t.In(c.loc).Format(canonicalPattern)
}

// ParseCanonical parses text strictly against the canonical pattern.
// This is the form stored rows use.
func (c *Codec) ParseCanonical(text string) (time.Time, error) {
	t, err := time.ParseInLocation(canonicalPattern, text, c.loc)
	if err != nil {
		return time.Time{}, ErrInvalidFormat
	}
	return t, nil
}

// Parse parses user-entered text. The canonical pattern is tried first.
// A year-less "MM-DDTHH:mm" is resolved against now: the current year is
// accepted only if the result is strictly in the future, otherwise the
// following year is used. This keeps near-term reminders from silently
// landing in the past.
func (c *Codec) Parse(text string, now time.Time) (time.Time, error) {
	if t, err := c.ParseCanonical(text); err == nil {
		return t, nil
	}

	short, err := time.ParseInLocation(yearlessPattern, text, c.loc)
	if err != nil {
		return time.Time{}, ErrInvalidFormat
	}

	now = now.In(c.loc)
	if t, ok := c.withYear(short, now.Year()); ok && t.After(now) {
		return t, nil
	}
	if t, ok := c.withYear(short, now.Year()+1); ok {
		return t, nil
	}
	return time.Time{}, ErrInvalidFormat
}

// withYear rebuilds a year-less instant in the given year. It reports
// false when the date does not exist in that year (Feb 29 off a leap
// year) instead of letting time.Date normalize it into March.
func (c *Codec) withYear(short time.Time, year int) (time.Time, bool) {
	t := time.Date(year, short.Month(), short.Day(), short.Hour(), short.Minute(), 0, 0, c.loc)
	if t.Month() != short.Month() || t.Day() != short.Day() {
		return time.Time{}, false
	}
	return t, true
}
