package booking

import "strings"

const DefaultServiceLabel = "Appointment"

// Request is one booking attempt as received from a caller.
type Request struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	ServiceLabel string `json:"serviceLabel,omitempty"`
	FreeText     string `json:"freeText,omitempty"`
}

// label returns the service label as given, or fallback when it is blank.
func (r Request) label(fallback string) string {
	if strings.TrimSpace(r.ServiceLabel) != "" {
		return r.ServiceLabel
	}
	if fallback != "" {
		return fallback
	}
	return DefaultServiceLabel
}

func (r Request) missingInput() bool {
	return strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.Time) == ""
}
