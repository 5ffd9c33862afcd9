package timenorm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNonexistentTime marks a wall clock skipped by a forward transition.
	ErrNonexistentTime = errors.New("timenorm: local time does not exist")
	// ErrAmbiguousTime marks a wall clock that occurs twice after a backward transition.
	ErrAmbiguousTime = errors.New("timenorm: local time is ambiguous")
)

// No zone changes its offset twice within sampleSpan of a wall clock.
const sampleSpan = 48 * time.Hour

// Bind places the wall clock fields of wall (its own location is ignored)
// in loc. Unlike time.Date it refuses wall clocks that fall in a DST gap or
// overlap instead of silently picking one.
func Bind(wall time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	y, mo, d := wall.Date()
	h, mi, s := wall.Clock()
	ns := wall.Nanosecond()
	naive := time.Date(y, mo, d, h, mi, s, ns, time.UTC)

	offsets := make([]int, 0, 3)
	for _, sample := range []time.Time{naive.Add(-sampleSpan), naive, naive.Add(sampleSpan)} {
		_, off := sample.In(loc).Zone()
		if !containsInt(offsets, off) {
			offsets = append(offsets, off)
		}
	}

	var matches []time.Time
	for _, off := range offsets {
		cand := naive.Add(-time.Duration(off) * time.Second).In(loc)
		if !sameWall(cand, naive) {
			continue
		}
		dup := false
		for _, m := range matches {
			if m.Equal(cand) {
				dup = true
				break
			}
		}
		if !dup {
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 0:
		return time.Time{}, fmt.Errorf("%w: %s in %s", ErrNonexistentTime, naive.Format("2006-01-02 15:04:05"), loc)
	case 1:
		return matches[0], nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s in %s", ErrAmbiguousTime, naive.Format("2006-01-02 15:04:05"), loc)
	}
}

// StartOfDay returns the first instant of the calendar date of day in loc.
func StartOfDay(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ah, ami, as := a.Clock()
	bh, bmi, bs := b.Clock()
	return ay == by && am == bm && ad == bd && ah == bh && ami == bmi && as == bs && a.Nanosecond() == b.Nanosecond()
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
