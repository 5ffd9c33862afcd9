package model

import (
	"errors"
	"time"
)

// ErrNonPositiveDuration is returned by NewSlot when the service duration
// would not produce End > Start.
var ErrNonPositiveDuration = errors.New("model: slot duration must be positive")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewSlot builds the proposed slot for a booking starting at start.
func NewSlot(start time.Time, dur time.Duration) (Interval, error) {
	if dur <= 0 {
		return Interval{}, ErrNonPositiveDuration
	}
	return Interval{Start: start, End: start.Add(dur)}, nil
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// EventTime mirrors how calendar backends report one edge of an event.
// Exactly one of DateTime or Date is set.
type EventTime struct {
	// DateTime is RFC 3339 with offset, or a naive "2006-01-02T15:04:05"
	// value interpreted in TimeZone.
	DateTime string `json:"dateTime,omitempty"`
	// Date is "2006-01-02" for all-day events.
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (t EventTime) AllDay() bool {
	return t.DateTime == "" && t.Date != ""
}

// CalendarEvent is an existing event as returned by a gateway, before its
// times are resolved to instants.
type CalendarEvent struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary,omitempty"`
	Start   EventTime `json:"start"`
	End     EventTime `json:"end"`
}

// Occurrence is a CalendarEvent after its times were resolved in the
// reference zone.
type Occurrence struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary,omitempty"`
	AllDay  bool      `json:"allDay"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type Reminder struct {
	Method  string `json:"method" yaml:"method"`
	Minutes int    `json:"minutes" yaml:"minutes"`
}

const (
	ReminderEmail = "email"
	ReminderPopup = "popup"
)

// EventMetadata is what the booking flow attaches to a created event.
type EventMetadata struct {
	Label       string
	Description string
	Reminders   []Reminder
}

// CreatedEvent is the backend confirmation for a committed booking.
type CreatedEvent struct {
	ID   string
	Link string
}
