package booking

import "encoding/json"

type Status string

const (
	StatusRejected Status = "REJECTED"
	StatusBooked   Status = "BOOKED"
	StatusFailed   Status = "FAILED"
)

type Reason string

const (
	ReasonMissingInput             Reason = "MISSING_INPUT"
	ReasonInvalidDateTimeFormat    Reason = "INVALID_DATETIME_FORMAT"
	ReasonConflictDetected         Reason = "CONFLICT_DETECTED"
	ReasonConflictCheckUnavailable Reason = "CONFLICT_CHECK_UNAVAILABLE"
	ReasonCommitError              Reason = "COMMIT_ERROR"
)

// Outcome is the terminal result of one booking attempt. Rejected and
// Failed outcomes carry a Reason; only Booked carries EventID/EventLink.
type Outcome struct {
	Status    Status
	Reason    Reason
	Message   string
	Details   any
	EventID   string
	EventLink string
}

func Rejected(reason Reason, message string, details any) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason, Message: message, Details: details}
}

func Failed(reason Reason, message string, details any) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Message: message, Details: details}
}

func Booked(eventID, eventLink, message string) Outcome {
	return Outcome{Status: StatusBooked, Message: message, EventID: eventID, EventLink: eventLink}
}

func (o Outcome) IsBooked() bool { return o.Status == StatusBooked }

// CheckFailure is the details payload of CONFLICT_CHECK_UNAVAILABLE.
type CheckFailure struct {
	Failure string `json:"failure"`
	Error   string `json:"error"`
}

// BackendError is the details payload of COMMIT_ERROR, verbatim from the
// calendar backend.
type BackendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConflictDetails is the details payload of CONFLICT_DETECTED.
type ConflictDetails struct {
	EventID string `json:"eventId,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

type outcomeJSON struct {
	Status    Status  `json:"status"`
	Reason    *Reason `json:"reason"`
	Message   *string `json:"message"`
	Details   any     `json:"details"`
	EventID   *string `json:"eventId"`
	EventLink *string `json:"eventLink"`
}

// MarshalJSON writes every field, with absent values as null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Status:    o.Status,
		Message:   nullable(o.Message),
		Details:   o.Details,
		EventID:   nullable(o.EventID),
		EventLink: nullable(o.EventLink),
	}
	if o.Reason != "" {
		r := o.Reason
		out.Reason = &r
	}
	return json.Marshal(out)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
