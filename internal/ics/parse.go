package ics

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"apptbook/internal/gateway"
	appLog "apptbook/internal/log"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405"
	icsUTCLayout      = "20060102T150405Z"
)

// ParsedEvent is one VEVENT before recurrence expansion.
//
// Start and End are real instants when the VEVENT carries a TZID or a UTC
// suffix. For all-day and floating values they hold the wall clock in UTC;
// the reference zone is applied later by the conflict detector.
type ParsedEvent struct {
	Source Source

	UID       string
	Seq       int
	Summary   string
	Cancelled bool

	Start    time.Time
	End      time.Time
	AllDay   bool
	Floating bool
	TZID     string

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, same representation as Start
	IsOverride bool
}

// ParseICS parses one calendar payload. A VEVENT that cannot be read fails
// the whole payload: a partially read calendar would hide conflicts.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, gateway.Backend("", fmt.Sprintf("calendar %q is empty", src.ID), nil)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, gateway.Backend("", fmt.Sprintf("calendar %q is not valid iCalendar", src.ID), err)
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for i, ve := range cal.Events() {
		ev, err := parseVEvent(src, ve)
		if err != nil {
			return nil, gateway.Backend("", fmt.Sprintf("calendar %q: VEVENT #%d", src.ID, i+1), err)
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return out, fmt.Errorf("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Cancelled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.UID)
	}
	start, err := parseStamp(dtstart)
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start.t
	out.AllDay = start.allDay
	out.Floating = start.floating
	out.TZID = start.tzid

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, err := parseStamp(ve.GetProperty(ical.ComponentPropertyDtEnd))
		if err != nil {
			return out, fmt.Errorf("uid %s: DTEND: %w", out.UID, err)
		}
		if end.allDay != start.allDay || end.floating != start.floating {
			return out, fmt.Errorf("uid %s: DTSTART and DTEND differ in value type", out.UID)
		}
		out.End = end.t
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := parseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return out, fmt.Errorf("uid %s: DURATION: %w", out.UID, err)
		}
		out.End = out.Start.Add(d)
	case out.AllDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			st, err := parseStampValue(part, paramValue(p, "TZID"), paramValue(p, "VALUE"))
			if err != nil {
				return out, fmt.Errorf("uid %s: EXDATE: %w", out.UID, err)
			}
			out.ExDates = append(out.ExDates, st.t)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		st, err := parseStamp(p)
		if err != nil {
			return out, fmt.Errorf("uid %s: RECURRENCE-ID: %w", out.UID, err)
		}
		rid := st.t
		out.Recurrence = &rid
		out.IsOverride = true
	}

	return out, nil
}

type stamp struct {
	t        time.Time
	allDay   bool
	floating bool
	tzid     string
}

func parseStamp(p *ical.IANAProperty) (stamp, error) {
	return parseStampValue(strings.TrimSpace(p.Value), paramValue(p, "TZID"), paramValue(p, "VALUE"))
}

func parseStampValue(v, tzid, valueType string) (stamp, error) {
	if v == "" {
		return stamp{}, fmt.Errorf("empty value")
	}
	if strings.EqualFold(valueType, "DATE") || !strings.Contains(v, "T") {
		t, err := time.Parse(icsDateLayout, v)
		if err != nil {
			return stamp{}, fmt.Errorf("bad date %q", v)
		}
		return stamp{t: t, allDay: true}, nil
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(icsUTCLayout, v)
		if err != nil {
			return stamp{}, fmt.Errorf("bad UTC date-time %q", v)
		}
		return stamp{t: t}, nil
	}
	if tzid == "" {
		t, err := time.Parse(icsDateTimeLayout, v)
		if err != nil {
			return stamp{}, fmt.Errorf("bad date-time %q", v)
		}
		return stamp{t: t, floating: true}, nil
	}
	loc, err := time.LoadLocation(strings.Trim(tzid, `"`))
	if err != nil {
		return stamp{}, fmt.Errorf("unknown TZID %q: %w", tzid, err)
	}
	t, err := time.ParseInLocation(icsDateTimeLayout, v, loc)
	if err != nil {
		return stamp{}, fmt.Errorf("bad date-time %q", v)
	}
	return stamp{t: t, tzid: loc.String()}, nil
}

func paramValue(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

var durationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration reads an RFC 5545 DURATION such as "PT1H30M" or "P1D".
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	m := durationRe.FindStringSubmatch(v)
	if m == nil || v == "P" || v == "PT" || strings.HasSuffix(v, "T") {
		return 0, fmt.Errorf("bad duration %q", v)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("bad duration %q", v)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
