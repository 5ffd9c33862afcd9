// Package conflict decides whether a proposed slot collides with events
// already on the calendar.
package conflict

import (
	"context"
	"fmt"
	"time"

	"apptbook/internal/gateway"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
)

// DefaultMaxEventDuration bounds how far before the slot an overlapping
// event may start; the query window is widened by it on both sides.
const DefaultMaxEventDuration = 24 * time.Hour

// FailureReason says why a check could not produce a verdict.
type FailureReason string

const (
	FailureNone         FailureReason = ""
	FailureUnavailable  FailureReason = "service_unavailable"
	FailureMalformed    FailureReason = "malformed_backend_data"
	FailureBackendError FailureReason = "backend_error"
	FailureInvalidSlot  FailureReason = "invalid_slot"
)

// CheckError is returned by HasConflict when no verdict was possible.
type CheckError struct {
	Reason FailureReason
	Err    error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("conflict check failed (%s): %v", e.Reason, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// Verdict is the result of one check. Exactly one of HasConflict,
// Failure != FailureNone, or neither (slot is free) holds.
type Verdict struct {
	HasConflict bool
	Conflict    *model.Occurrence
	Failure     FailureReason
	Err         error
}

func (v Verdict) Failed() bool { return v.Failure != FailureNone }

// Options configures a Detector.
type Options struct {
	// Location is the reference zone for all-day events.
	Location *time.Location
	// MaxEventDuration widens the query window. Zero means the default.
	MaxEventDuration time.Duration
}

// Detector reads events through a gateway and compares them to a slot.
// It keeps no state between checks.
type Detector struct {
	gw               gateway.Gateway
	loc              *time.Location
	maxEventDuration time.Duration
}

// NewDetector returns a Detector reading through gw. A nil Location means
// UTC.
func NewDetector(gw gateway.Gateway, opts Options) *Detector {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxEventDuration <= 0 {
		opts.MaxEventDuration = DefaultMaxEventDuration
	}
	return &Detector{gw: gw, loc: opts.Location, maxEventDuration: opts.MaxEventDuration}
}

func (d *Detector) Location() *time.Location { return d.loc }

// Window returns the range fetched for slot. Events starting before the
// slot but still running into it fall inside it.
func (d *Detector) Window(slot model.Interval) (time.Time, time.Time) {
	return slot.Start.Add(-d.maxEventDuration), slot.End.Add(d.maxEventDuration)
}

// Check fetches the window around slot and reports the first overlapping
// event. Events are resolved in listing order and the scan stops at the
// first conflict; an unresolvable event reached before that fails the
// check. It never guesses: any failure is returned as such.
func (d *Detector) Check(ctx context.Context, slot model.Interval) Verdict {
	if !slot.End.After(slot.Start) {
		return Verdict{Failure: FailureInvalidSlot, Err: model.ErrNonPositiveDuration}
	}

	events, err := d.list(ctx, slot.Start, slot.End)
	if err != nil {
		return Verdict{Failure: err.Reason, Err: err.Err}
	}
	for _, ev := range events {
		occ, err := Resolve(ev, d.loc)
		if err != nil {
			appLog.Warn("calendar returned unusable event", "event_id", ev.ID, "err", err)
			return Verdict{Failure: FailureMalformed, Err: err}
		}
		if OverlapsSlot(occ, slot) {
			appLog.Debug("conflict found", "event_id", occ.ID,
				"event_start", occ.Start.Format(time.RFC3339), "event_end", occ.End.Format(time.RFC3339))
			return Verdict{HasConflict: true, Conflict: &occ}
		}
	}
	return Verdict{}
}

// HasConflict is Check reduced to a boolean and a *CheckError.
func (d *Detector) HasConflict(ctx context.Context, slot model.Interval) (bool, error) {
	v := d.Check(ctx, slot)
	if v.Failed() {
		return false, &CheckError{Reason: v.Failure, Err: v.Err}
	}
	return v.HasConflict, nil
}

// list fetches the widened window around [start, end).
func (d *Detector) list(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, *CheckError) {
	wStart, wEnd := d.Window(model.Interval{Start: start, End: end})
	events, err := d.gw.ListEvents(ctx, wStart, wEnd)
	if err != nil {
		return nil, &CheckError{Reason: classify(err), Err: err}
	}
	return events, nil
}

// fetch lists the widened window around [start, end) and resolves every
// event. A single unresolvable event fails the whole fetch.
func (d *Detector) fetch(ctx context.Context, start, end time.Time) ([]model.Occurrence, error) {
	events, cerr := d.list(ctx, start, end)
	if cerr != nil {
		return nil, cerr
	}

	occs := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		occ, err := Resolve(ev, d.loc)
		if err != nil {
			appLog.Warn("calendar returned unusable event", "event_id", ev.ID, "err", err)
			return nil, &CheckError{Reason: FailureMalformed, Err: err}
		}
		occs = append(occs, occ)
	}
	return occs, nil
}

// classify maps a gateway error onto a failure reason. Errors that carry no
// gateway kind are treated as the backend being unreachable.
func classify(err error) FailureReason {
	switch {
	case gateway.IsKind(err, gateway.KindBackend):
		return FailureBackendError
	default:
		return FailureUnavailable
	}
}
