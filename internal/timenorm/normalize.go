// Package timenorm turns loosely formatted booking input into zoned instants.
//
// Accepted dates are YYYY-MM-DD. Accepted times are 24-hour H:MM / HH:MM or
// 12-hour H:MM / HH:MM followed by whitespace and an AM/PM marker. Every
// other shape fails with ErrInvalidFormat, as does a wall clock that does
// not exist (or exists twice) in the reference zone.
package timenorm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted date form.
const DateLayout = "2006-01-02"

// ErrInvalidFormat is matched by every error returned from Normalize.
var ErrInvalidFormat = errors.New("timenorm: invalid date/time format")

var (
	clock24Re = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	clock12Re = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s+([AaPp][Mm])$`)
)

// FormatError describes why a (date, time) pair was refused.
type FormatError struct {
	Date   string
	Time   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timenorm: cannot normalize %q %q: %s: %v", e.Date, e.Time, e.Reason, e.Err)
	}
	return fmt.Sprintf("timenorm: cannot normalize %q %q: %s", e.Date, e.Time, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

// Normalizer binds input to one reference zone. The zero value uses UTC.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer for loc, or UTC when loc is nil.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

func (n *Normalizer) Location() *time.Location {
	if n == nil || n.loc == nil {
		return time.UTC
	}
	return n.loc
}

// Normalize parses date and clock and binds them in the normalizer's zone.
func (n *Normalizer) Normalize(date, clock string) (time.Time, error) {
	return Normalize(date, clock, n.Location())
}

// Normalize parses date and clock and binds them in loc.
func Normalize(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d := strings.TrimSpace(date)
	c := strings.TrimSpace(clock)

	day, err := ParseDate(d)
	if err != nil {
		return time.Time{}, &FormatError{Date: date, Time: clock, Reason: "date is not YYYY-MM-DD"}
	}
	hour, minute, err := ParseClock(c)
	if err != nil {
		return time.Time{}, &FormatError{Date: date, Time: clock, Reason: err.Error()}
	}

	wall := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
	t, err := Bind(wall, loc)
	if err != nil {
		return time.Time{}, &FormatError{Date: date, Time: clock, Reason: "local time cannot be placed in " + loc.String(), Err: err}
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD calendar date. The result is midnight UTC
// and only its date fields are meaningful.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, s)
	}
	return t, nil
}

// ParseClock accepts "H:MM", "HH:MM" (24-hour) and "H:MM AM" / "HH:MM pm" (12-hour).
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)

	if m := clock24Re.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 23 {
			return 0, 0, fmt.Errorf("%w: hour %d out of range", ErrInvalidFormat, hour)
		}
		if minute > 59 {
			return 0, 0, fmt.Errorf("%w: minute %d out of range", ErrInvalidFormat, minute)
		}
		return hour, minute, nil
	}

	if m := clock12Re.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("%w: hour %d out of range for 12-hour clock", ErrInvalidFormat, hour)
		}
		if minute > 59 {
			return 0, 0, fmt.Errorf("%w: minute %d out of range", ErrInvalidFormat, minute)
		}
		pm := strings.EqualFold(m[3], "PM")
		switch {
		case hour == 12 && !pm:
			hour = 0
		case hour != 12 && pm:
			hour += 12
		}
		return hour, minute, nil
	}

	return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidFormat, s)
}
