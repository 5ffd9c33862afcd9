package conflict

import (
	"time"

	"apptbook/internal/model"
)

// Overlaps reports whether two half-open ranges share any instant.
// Ranges that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// OverlapsSlot applies Overlaps to an existing event and a proposed slot.
func OverlapsSlot(ev model.Occurrence, slot model.Interval) bool {
	return Overlaps(ev.Start, ev.End, slot.Start, slot.End)
}
