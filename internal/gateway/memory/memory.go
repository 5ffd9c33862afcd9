// Package memory is an in-process calendar used for local runs and as the
// fake backend in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"apptbook/internal/gateway"
	"apptbook/internal/model"
)

// Calendar implements gateway.Gateway over a mutex-guarded slice.
type Calendar struct {
	mu     sync.Mutex
	events []model.CalendarEvent

	listErr   error
	createErr error

	listCalls   int
	createCalls int
	lastStart   time.Time
	lastEnd     time.Time
}

var _ gateway.Gateway = (*Calendar)(nil)

func New(events ...model.CalendarEvent) *Calendar {
	c := &Calendar{}
	for _, ev := range events {
		c.Add(ev)
	}
	return c
}

// Add stores ev as-is. An empty ID is replaced with a fresh one.
func (c *Calendar) Add(ev model.CalendarEvent) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	c.events = append(c.events, ev)
	return ev.ID
}

// AddTimed stores a timed event between two instants.
func (c *Calendar) AddTimed(summary string, start, end time.Time) string {
	return c.Add(model.CalendarEvent{
		Summary: summary,
		Start:   model.EventTime{DateTime: start.Format(time.RFC3339)},
		End:     model.EventTime{DateTime: end.Format(time.RFC3339)},
	})
}

// FailList makes every following ListEvents return err. nil clears it.
func (c *Calendar) FailList(err error) {
	c.mu.Lock()
	c.listErr = err
	c.mu.Unlock()
}

// FailCreate makes every following CreateEvent return err. nil clears it.
func (c *Calendar) FailCreate(err error) {
	c.mu.Lock()
	c.createErr = err
	c.mu.Unlock()
}

func (c *Calendar) ListCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

func (c *Calendar) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// LastWindow returns the bounds of the most recent ListEvents call.
func (c *Calendar) LastWindow() (time.Time, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStart, c.lastEnd
}

func (c *Calendar) Events() []model.CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.CalendarEvent(nil), c.events...)
}

// ListEvents returns stored events overlapping [start, end). Events whose
// edges are not RFC 3339 instants cannot be placed without a reference zone
// and are always returned; the caller resolves and filters them.
func (c *Calendar) ListEvents(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.Unavailable("list events", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	c.lastStart, c.lastEnd = start, end
	if c.listErr != nil {
		return nil, c.listErr
	}

	out := make([]model.CalendarEvent, 0, len(c.events))
	for _, ev := range c.events {
		s, serr := time.Parse(time.RFC3339, ev.Start.DateTime)
		e, eerr := time.Parse(time.RFC3339, ev.End.DateTime)
		if serr == nil && eerr == nil && !(s.Before(end) && e.After(start)) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.DateTime+out[i].Start.Date < out[j].Start.DateTime+out[j].Start.Date
	})
	return out, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, slot model.Interval, meta model.EventMetadata) (model.CreatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.CreatedEvent{}, gateway.Unavailable("create event", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.createErr != nil {
		return model.CreatedEvent{}, c.createErr
	}

	id := uuid.NewString()
	zone := slot.Start.Location().String()
	c.events = append(c.events, model.CalendarEvent{
		ID:      id,
		Summary: meta.Label,
		Start:   model.EventTime{DateTime: slot.Start.Format(time.RFC3339), TimeZone: zone},
		End:     model.EventTime{DateTime: slot.End.Format(time.RFC3339), TimeZone: zone},
	})
	return model.CreatedEvent{ID: id, Link: "memory://events/" + id}, nil
}
