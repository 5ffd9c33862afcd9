package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"apptbook/internal/conflict"
	"apptbook/internal/gateway"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
	"apptbook/internal/timenorm"
)

const DefaultServiceDuration = time.Hour

// Stage names the step an attempt was in when it terminated.
type Stage string

const (
	StageValidating       Stage = "validating"
	StageNormalizing      Stage = "normalizing"
	StageCheckingConflict Stage = "checking_conflict"
	StageCommitting       Stage = "committing"
)

const (
	msgMissingInput     = "Missing date or time for the appointment."
	msgMissingDetails   = "Date or time not provided."
	msgConflict         = "The requested time slot is already booked or conflicts with another event."
	msgCheckUnavailable = "Could not verify the requested time slot. Please try again later."
	msgCommitError      = "Failed to book the appointment due to a calendar service error."
	msgNoEventID        = "calendar accepted the event but returned no id"
)

func msgInvalidFormat(date, clock string) string {
	return fmt.Sprintf("Could not parse '%s %s'. Use YYYY-MM-DD HH:MM or YYYY-MM-DD hh:mm AM/PM.", date, clock)
}

// Options tunes a Pipeline. Zero values fall back to the package defaults.
type Options struct {
	ServiceDuration     time.Duration
	DefaultServiceLabel string
	Reminders           []model.Reminder
}

// DefaultReminders is an email a day ahead plus a popup 15 minutes ahead.
func DefaultReminders() []model.Reminder {
	return []model.Reminder{
		{Method: model.ReminderEmail, Minutes: 24 * 60},
		{Method: model.ReminderPopup, Minutes: 15},
	}
}

// Pipeline turns a Request into exactly one Outcome. It holds only
// configuration and is safe for concurrent use.
type Pipeline struct {
	normalizer *timenorm.Normalizer
	detector   *conflict.Detector
	gw         gateway.Gateway
	opts       Options
}

// NewPipeline wires the normalizer, detector and gateway into a Pipeline.
func NewPipeline(n *timenorm.Normalizer, d *conflict.Detector, gw gateway.Gateway, opts Options) *Pipeline {
	if opts.ServiceDuration <= 0 {
		opts.ServiceDuration = DefaultServiceDuration
	}
	if strings.TrimSpace(opts.DefaultServiceLabel) == "" {
		opts.DefaultServiceLabel = DefaultServiceLabel
	}
	if opts.Reminders == nil {
		opts.Reminders = DefaultReminders()
	}
	return &Pipeline{normalizer: n, detector: d, gw: gw, opts: opts}
}

func (p *Pipeline) ServiceDuration() time.Duration { return p.opts.ServiceDuration }

// Book runs one attempt through validation, normalization, the conflict
// check and the commit. It does not retry.
func (p *Pipeline) Book(ctx context.Context, req Request) Outcome {
	l := appLog.With("attempt_id", uuid.NewString())
	label := req.label(p.opts.DefaultServiceLabel)

	if req.missingInput() {
		l.Info("booking rejected", "stage", StageValidating, "reason", ReasonMissingInput)
		return Rejected(ReasonMissingInput, msgMissingInput, msgMissingDetails)
	}

	date, clock := strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	start, err := p.normalizer.Normalize(date, clock)
	if err != nil {
		l.Info("booking rejected", "stage", StageNormalizing, "reason", ReasonInvalidDateTimeFormat,
			"date", date, "time", clock, "err", err)
		return Rejected(ReasonInvalidDateTimeFormat, msgInvalidFormat(date, clock), err.Error())
	}
	slot, err := model.NewSlot(start, p.opts.ServiceDuration)
	if err != nil {
		// Unreachable with a positive ServiceDuration.
		return Rejected(ReasonInvalidDateTimeFormat, msgInvalidFormat(date, clock), err.Error())
	}
	l = l.With("slot_start", slot.Start.Format(time.RFC3339), "slot_end", slot.End.Format(time.RFC3339))

	v := p.detector.Check(ctx, slot)
	if v.Failed() {
		// Fail closed: a slot that cannot be verified is never booked.
		l.Warn("conflict check failed, refusing to book", "stage", StageCheckingConflict,
			"failure", v.Failure, "err", v.Err)
		return Rejected(ReasonConflictCheckUnavailable, msgCheckUnavailable,
			CheckFailure{Failure: string(v.Failure), Error: errString(v.Err)})
	}
	if v.HasConflict {
		l.Info("booking rejected", "stage", StageCheckingConflict, "reason", ReasonConflictDetected,
			"conflict_id", v.Conflict.ID)
		return Rejected(ReasonConflictDetected, msgConflict, ConflictDetails{
			EventID: v.Conflict.ID,
			Start:   v.Conflict.Start.Format(time.RFC3339),
			End:     v.Conflict.End.Format(time.RFC3339),
		})
	}

	meta := model.EventMetadata{
		Label:       label,
		Description: req.FreeText,
		Reminders:   p.opts.Reminders,
	}
	// Once the check has passed the commit is not abandoned mid-flight.
	created, err := p.gw.CreateEvent(context.WithoutCancel(ctx), slot, meta)
	if err != nil {
		code, message := gateway.CodeAndMessage(err)
		l.Error("commit failed", err, "stage", StageCommitting, "code", code)
		return Failed(ReasonCommitError, msgCommitError, BackendError{Code: code, Message: message})
	}
	if strings.TrimSpace(created.ID) == "" {
		l.Error("commit returned no event id", errors.New(msgNoEventID), "stage", StageCommitting)
		return Failed(ReasonCommitError, msgCommitError, BackendError{Message: msgNoEventID})
	}

	l.Info("appointment booked", "event_id", created.ID, "label", label)
	return Booked(created.ID, created.Link, fmt.Sprintf("%s successfully booked for %s at %s.", label, date, clock))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
