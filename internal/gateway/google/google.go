// Package google talks to Google Calendar through the generated v3 client,
// authorized with an OAuth2 refresh-token client.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"apptbook/internal/gateway"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3/"
	CalendarScope  = calendar.CalendarScope

	pageSize = 250
)

// Credentials are read from the environment; they are never persisted.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// NewHTTPClient returns a client that refreshes access tokens on demand.
func NewHTTPClient(ctx context.Context, creds Credentials) *http.Client {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{CalendarScope},
	}
	return conf.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
}

// Options selects the calendar and how to reach it. BaseURL is only set
// in tests; empty means the public endpoint.
type Options struct {
	CalendarID string
	BaseURL    string
	HTTPClient *http.Client
}

// Calendar implements gateway.Gateway for one Google calendar.
type Calendar struct {
	calendarID string
	svc        *calendar.Service
}

var _ gateway.Gateway = (*Calendar)(nil)

// New builds the calendar service on opts.HTTPClient, which must carry the
// authorization. The calendar ID defaults to "primary".
func New(ctx context.Context, opts Options) (*Calendar, error) {
	if opts.HTTPClient == nil {
		return nil, errors.New("google: http client is required")
	}
	id := strings.TrimSpace(opts.CalendarID)
	if id == "" {
		id = "primary"
	}
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(opts.HTTPClient), option.WithEndpoint(base))
	if err != nil {
		return nil, fmt.Errorf("google: create calendar service: %w", err)
	}
	return &Calendar{calendarID: id, svc: svc}, nil
}

// ListEvents pages through events.list with recurring events expanded.
// Cancelled instances are dropped.
func (c *Calendar) ListEvents(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	call := c.svc.Events.List(c.calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(pageSize)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, it := range page.Items {
			if it == nil || it.Status == "cancelled" {
				continue
			}
			out = append(out, toModel(it))
		}
		return nil
	})
	if err != nil {
		return nil, mapError("list events", err)
	}
	appLog.Debug("google: listed events", "calendar", c.calendarID, "count", len(out))
	return out, nil
}

// CreateEvent inserts one timed event with explicit reminder overrides.
func (c *Calendar) CreateEvent(ctx context.Context, slot model.Interval, meta model.EventMetadata) (model.CreatedEvent, error) {
	zone := zoneName(slot.Start.Location())
	ev := &calendar.Event{
		Summary:     meta.Label,
		Description: meta.Description,
		Start:       &calendar.EventDateTime{DateTime: slot.Start.Format(time.RFC3339), TimeZone: zone},
		End:         &calendar.EventDateTime{DateTime: slot.End.Format(time.RFC3339), TimeZone: zone},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, r := range meta.Reminders {
		ev.Reminders.Overrides = append(ev.Reminders.Overrides, &calendar.EventReminder{
			Method:          r.Method,
			Minutes:         int64(r.Minutes),
			ForceSendFields: []string{"Minutes"},
		})
	}

	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return model.CreatedEvent{}, mapError("insert event", err)
	}
	return model.CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

// mapError sorts client errors into gateway kinds. Throttling, server
// errors and transport failures are transient; everything else is the
// backend refusing or garbling the request.
func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiError(apiErr)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		code := rerr.ErrorCode
		if code == "" && rerr.Response != nil {
			code = strconv.Itoa(rerr.Response.StatusCode)
		}
		msg := rerr.ErrorDescription
		if msg == "" {
			msg = "token refresh failed"
		}
		return gateway.Backend(code, msg, err)
	}

	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return gateway.Unavailable(op, err)
	}
	return gateway.Backend("", op+": undecodable response", err)
}

func apiError(e *googleapi.Error) error {
	reason := ""
	if len(e.Errors) > 0 {
		reason = e.Errors[0].Reason
	}
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = http.StatusText(e.Code)
	}

	transient := e.Code == http.StatusTooManyRequests ||
		e.Code >= 500 ||
		reason == "rateLimitExceeded" || reason == "userRateLimitExceeded"
	kind := gateway.KindBackend
	if transient {
		kind = gateway.KindUnavailable
	}
	appLog.Debug("google: request failed", "status", e.Code, "reason", reason)
	return &gateway.Error{Kind: kind, Code: strconv.Itoa(e.Code), Message: msg, Cause: e}
}

func toModel(e *calendar.Event) model.CalendarEvent {
	out := model.CalendarEvent{ID: e.Id, Summary: e.Summary}
	if e.Start != nil {
		out.Start = model.EventTime{DateTime: e.Start.DateTime, Date: e.Start.Date, TimeZone: e.Start.TimeZone}
	}
	if e.End != nil {
		out.End = model.EventTime{DateTime: e.End.DateTime, Date: e.End.Date, TimeZone: e.End.TimeZone}
	}
	return out
}

// zoneName returns an IANA name Google accepts, or "" when the location has
// none (the offset in dateTime is then authoritative).
func zoneName(loc *time.Location) string {
	if loc == nil {
		return ""
	}
	name := loc.String()
	if name == "Local" || name == "" {
		return ""
	}
	return name
}
