package ics

import (
	"context"
	"time"

	"apptbook/internal/gateway"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
)

// Calendar is a gateway over a local .ics store plus read-only
// subscriptions. Bookings go to the store; every source blocks slots.
type Calendar struct {
	store   *Store
	fetcher *Fetcher
	sources []Source
}

var _ gateway.Gateway = (*Calendar)(nil)

// NewCalendar books into store and reads sources through fetcher.
func NewCalendar(store *Store, fetcher *Fetcher, sources []Source) *Calendar {
	return &Calendar{store: store, fetcher: fetcher, sources: sources}
}

func (c *Calendar) Sources() []Source {
	return append([]Source(nil), c.sources...)
}

func (c *Calendar) ListEvents(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.Unavailable("list events", err)
	}

	parsed, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	if len(c.sources) > 0 && c.fetcher != nil {
		results, err := c.fetcher.FetchAll(ctx, c.sources)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			evs, err := ParseICS(res.Source, res.Body)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, evs...)
		}
	}

	out, err := ExpandOccurrences(parsed, ExpandConfig{RangeStart: start, RangeEnd: end})
	if err != nil {
		return nil, err
	}
	appLog.Debug("ics: listed events", "sources", len(c.sources)+1, "count", len(out))
	return out, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, slot model.Interval, meta model.EventMetadata) (model.CreatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.CreatedEvent{}, gateway.Unavailable("create event", err)
	}
	created, err := c.store.Append(slot, meta)
	if err != nil {
		return model.CreatedEvent{}, err
	}
	appLog.Info("ics: booking written", "uid", created.ID, "path", c.store.Path())
	return created, nil
}

// Refresh re-fetches every subscription into the disk cache so the next
// conflict check can fall back to fresh data if a feed goes down.
func (c *Calendar) Refresh(ctx context.Context) error {
	if c.fetcher == nil || len(c.sources) == 0 {
		return nil
	}
	results, err := c.fetcher.FetchAll(ctx, c.sources)
	if err != nil {
		return err
	}
	for _, res := range results {
		if _, err := ParseICS(res.Source, res.Body); err != nil {
			return err
		}
	}
	return nil
}
