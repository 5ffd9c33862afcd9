// Package gateway defines the calendar backend contract used by the booking
// core, plus the error type every backend reports failures with.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apptbook/internal/model"
)

// Gateway reads and writes events on one calendar.
type Gateway interface {
	// ListEvents returns every event overlapping [start, end).
	ListEvents(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
	// CreateEvent commits a new event. A nil error implies a non-empty ID.
	CreateEvent(ctx context.Context, slot model.Interval, meta model.EventMetadata) (model.CreatedEvent, error)
}

// Kind classifies a gateway failure.
type Kind string

const (
	// KindUnavailable means the backend could not be reached or asked us to back off.
	KindUnavailable Kind = "unavailable"
	// KindBackend means the backend answered with an error.
	KindBackend Kind = "backend"
)

// Error is the failure type returned by every Gateway implementation.
// Code and Message carry the backend's own values verbatim.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("calendar %s", e.Kind)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Unavailable creates a KindUnavailable error.
func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Cause: cause}
}

// Backend creates a KindBackend error with the backend's code and message.
func Backend(code, msg string, cause error) *Error {
	return &Error{Kind: KindBackend, Code: code, Message: msg, Cause: cause}
}

// IsKind reports whether err wraps a *Error of the given kind. Context
// cancellation and deadline errors count as KindUnavailable.
func IsKind(err error, kind Kind) bool {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind == kind
	}
	if kind == KindUnavailable {
		return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

// CodeAndMessage extracts the backend code and message from err, falling
// back to err.Error() for foreign errors.
func CodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		message = gerr.Message
		if message == "" && gerr.Cause != nil {
			message = gerr.Cause.Error()
		}
		return gerr.Code, message
	}
	return "", err.Error()
}
