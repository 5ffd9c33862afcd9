package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"apptbook/internal/gateway"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	// Wall-clock values (all-day, floating) may sit up to this far from
	// their real instant in any zone.
	maxZoneOffset = 14 * time.Hour

	naiveLayout = "2006-01-02T15:04:05"
)

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandOccurrences turns parsed VEVENTs into gateway events overlapping
// [RangeStart, RangeEnd). It handles RRULE, EXDATE, RECURRENCE-ID overrides
// and cancelled instances. An unreadable RRULE fails the expansion.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, error) {
	if !cfg.RangeEnd.After(cfg.RangeStart) {
		return nil, errors.New("expand: empty range")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	var out []model.CalendarEvent
	used := make(map[*ParsedEvent]bool)

	uids := make([]string, 0, len(baseByUID))
	for uid := range baseByUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		ov := overridesByUID[uid]
		for _, ev := range baseByUID[uid] {
			if ev.Cancelled {
				continue
			}
			occ, err := expandEvent(ev, ov, used, cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, occ...)
		}
	}

	// Overrides that moved an instance into the range from outside it.
	for uid, ovs := range overridesByUID {
		for i := range ovs {
			o := &ovs[i]
			if used[o] || o.Cancelled || !inRange(*o, o.Start, o.End, cfg) {
				continue
			}
			if occ, ok := makeEvent(*o, o.Start, o.End); ok {
				appLog.Debug("expand: standalone override", "uid", uid)
				out = append(out, occ)
			}
		}
	}

	return out, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, used map[*ParsedEvent]bool, cfg ExpandConfig) ([]model.CalendarEvent, error) {
	if ev.RawRRule == "" {
		return emit(ev, ev.Start, ev.End, overrides, used, cfg), nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, gateway.Backend("", fmt.Sprintf("uid %s: unreadable RRULE %q", ev.UID, ev.RawRRule), err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Occurrences starting before the range can still reach into it.
	dur := ev.End.Sub(ev.Start)
	lo := cfg.RangeStart.Add(-dur)
	hi := cfg.RangeEnd
	if ev.AllDay || ev.Floating {
		lo = lo.Add(-maxZoneOffset)
		hi = hi.Add(maxZoneOffset)
	}
	starts := set.Between(lo.In(ev.Start.Location()), hi.In(ev.Start.Location()), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("expand: truncated occurrences", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	var out []model.CalendarEvent
	for _, s := range starts {
		out = append(out, emit(ev, s, s.Add(dur), overrides, used, cfg)...)
	}
	return out, nil
}

// emit applies a matching override to one instance and keeps it when it
// overlaps the range.
func emit(ev ParsedEvent, start, end time.Time, overrides []ParsedEvent, used map[*ParsedEvent]bool, cfg ExpandConfig) []model.CalendarEvent {
	for i := range overrides {
		o := &overrides[i]
		if o.Recurrence == nil || !o.Recurrence.Equal(start) {
			continue
		}
		used[o] = true
		if o.Cancelled {
			return nil
		}
		ev, start, end = *o, o.Start, o.End
		break
	}
	if !inRange(ev, start, end, cfg) {
		return nil
	}
	if occ, ok := makeEvent(ev, start, end); ok {
		return []model.CalendarEvent{occ}
	}
	return nil
}

func inRange(ev ParsedEvent, start, end time.Time, cfg ExpandConfig) bool {
	lo, hi := cfg.RangeStart, cfg.RangeEnd
	if ev.AllDay || ev.Floating {
		lo = lo.Add(-maxZoneOffset)
		hi = hi.Add(maxZoneOffset)
	}
	return start.Before(hi) && end.After(lo)
}

// makeEvent renders one instance in gateway form. Zero-length timed
// instances occupy no time and are dropped.
func makeEvent(ev ParsedEvent, start, end time.Time) (model.CalendarEvent, bool) {
	occ := model.CalendarEvent{ID: ev.UID, Summary: ev.Summary}
	if ev.RawRRule != "" || ev.IsOverride {
		occ.ID = ev.UID + "_" + start.UTC().Format(icsUTCLayout)
	}

	switch {
	case ev.AllDay:
		occ.Start = model.EventTime{Date: start.Format("2006-01-02")}
		occ.End = model.EventTime{Date: end.Format("2006-01-02")}
	case !end.After(start) && !ev.Floating:
		return occ, false
	case ev.Floating:
		occ.Start = model.EventTime{DateTime: start.Format(naiveLayout)}
		occ.End = model.EventTime{DateTime: end.Format(naiveLayout)}
	default:
		occ.Start = model.EventTime{DateTime: start.Format(time.RFC3339), TimeZone: ev.TZID}
		occ.End = model.EventTime{DateTime: end.Format(time.RFC3339), TimeZone: ev.TZID}
	}
	return occ, true
}
