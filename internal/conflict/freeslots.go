package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"apptbook/internal/model"
	"apptbook/internal/timenorm"
)

// BusinessHours are wall-clock offsets from midnight, e.g. 9h and 17h.
type BusinessHours struct {
	Open  time.Duration
	Close time.Duration
}

// ParseBusinessHours reads "HH:MM" bounds in any clock shape timenorm accepts.
func ParseBusinessHours(openAt, closeAt string) (BusinessHours, error) {
	oh, om, err := timenorm.ParseClock(openAt)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("business hours open: %w", err)
	}
	ch, cm, err := timenorm.ParseClock(closeAt)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("business hours close: %w", err)
	}
	bh := BusinessHours{
		Open:  time.Duration(oh)*time.Hour + time.Duration(om)*time.Minute,
		Close: time.Duration(ch)*time.Hour + time.Duration(cm)*time.Minute,
	}
	if bh.Close <= bh.Open {
		return BusinessHours{}, fmt.Errorf("business hours close %s is not after open %s", closeAt, openAt)
	}
	return bh, nil
}

// FreeSlots lists the slots of length dur on day, stepping from opening
// time, that end by closing time and overlap no existing event. One fetch
// covers every candidate. Wall clocks that do not exist (or exist twice) on a
// DST transition day are skipped.
func (d *Detector) FreeSlots(ctx context.Context, day time.Time, hours BusinessHours, dur time.Duration) ([]model.Interval, error) {
	if dur <= 0 {
		return nil, &CheckError{Reason: FailureInvalidSlot, Err: model.ErrNonPositiveDuration}
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var candidates []model.Interval
	for off := hours.Open; off+dur <= hours.Close; off += dur {
		start, err := timenorm.Bind(midnight.Add(off), d.loc)
		if err != nil {
			continue
		}
		candidates = append(candidates, model.Interval{Start: start, End: start.Add(dur)})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	occs, err := d.fetch(ctx, candidates[0].Start, candidates[len(candidates)-1].End)
	if err != nil {
		return nil, err
	}

	free := make([]model.Interval, 0, len(candidates))
	for _, slot := range candidates {
		busy := false
		for _, occ := range occs {
			if OverlapsSlot(occ, slot) {
				busy = true
				break
			}
		}
		if !busy {
			free = append(free, slot)
		}
	}
	return free, nil
}

// EventsOn returns the resolved events overlapping the calendar date of day
// in the reference zone, ordered by start.
func (d *Detector) EventsOn(ctx context.Context, day time.Time) ([]model.Occurrence, error) {
	start := timenorm.StartOfDay(day, d.loc)
	end := timenorm.StartOfDay(time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, time.UTC), d.loc)

	occs, err := d.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]model.Occurrence, 0, len(occs))
	for _, occ := range occs {
		if Overlaps(occ.Start, occ.End, start, end) {
			out = append(out, occ)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
