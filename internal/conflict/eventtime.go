package conflict

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"apptbook/internal/model"
	"apptbook/internal/timenorm"
)

// ErrMalformedEvent is matched by every error returned from Resolve.
var ErrMalformedEvent = errors.New("conflict: malformed calendar event")

// MalformedError names the event and edge that could not be placed in time.
type MalformedError struct {
	EventID string
	Field   string
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("conflict: event %q %s: %s", e.EventID, e.Field, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedEvent }

var naiveLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// Resolve places a gateway event in time. Timed edges need an offset or an
// IANA TimeZone; all-day edges are midnights in ref. An all-day end on or
// before its start date is treated as the following day.
func Resolve(ev model.CalendarEvent, ref *time.Location) (model.Occurrence, error) {
	if ref == nil {
		ref = time.UTC
	}
	occ := model.Occurrence{ID: ev.ID, Summary: ev.Summary}

	switch {
	case ev.Start.AllDay() && ev.End.AllDay():
		start, err := allDayEdge(ev.ID, "start", ev.Start.Date, ref)
		if err != nil {
			return occ, err
		}
		end, err := allDayEdge(ev.ID, "end", ev.End.Date, ref)
		if err != nil {
			return occ, err
		}
		if !end.After(start) {
			end = timenorm.StartOfDay(start.AddDate(0, 0, 1), ref)
		}
		occ.AllDay = true
		occ.Start, occ.End = start, end

	case ev.Start.AllDay() || ev.End.AllDay():
		return occ, &MalformedError{EventID: ev.ID, Field: "start/end", Reason: "mixes all-day and timed values"}

	default:
		start, err := timedEdge(ev.ID, "start", ev.Start)
		if err != nil {
			return occ, err
		}
		end, err := timedEdge(ev.ID, "end", ev.End)
		if err != nil {
			return occ, err
		}
		occ.Start, occ.End = start.In(ref), end.In(ref)
	}

	if !occ.End.After(occ.Start) {
		return occ, &MalformedError{EventID: ev.ID, Field: "end", Reason: "not after start"}
	}
	return occ, nil
}

func allDayEdge(id, field, date string, ref *time.Location) (time.Time, error) {
	d, err := timenorm.ParseDate(date)
	if err != nil {
		return time.Time{}, &MalformedError{EventID: id, Field: field, Reason: fmt.Sprintf("date %q is not YYYY-MM-DD", date)}
	}
	return timenorm.StartOfDay(d, ref), nil
}

func timedEdge(id, field string, et model.EventTime) (time.Time, error) {
	v := strings.TrimSpace(et.DateTime)
	if v == "" {
		return time.Time{}, &MalformedError{EventID: id, Field: field, Reason: "no date or dateTime"}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}

	var wall time.Time
	var perr error
	for _, layout := range naiveLayouts {
		if wall, perr = time.Parse(layout, v); perr == nil {
			break
		}
	}
	if perr != nil {
		return time.Time{}, &MalformedError{EventID: id, Field: field, Reason: fmt.Sprintf("unparseable dateTime %q", v)}
	}
	if et.TimeZone == "" {
		return time.Time{}, &MalformedError{EventID: id, Field: field, Reason: fmt.Sprintf("dateTime %q has no zone", v)}
	}
	loc, err := time.LoadLocation(et.TimeZone)
	if err != nil {
		return time.Time{}, &MalformedError{EventID: id, Field: field, Reason: fmt.Sprintf("unknown timeZone %q", et.TimeZone)}
	}
	t, err := timenorm.Bind(wall, loc)
	if err != nil {
		return time.Time{}, &MalformedError{EventID: id, Field: field, Reason: err.Error()}
	}
	return t, nil
}
