package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptbook/internal/gateway"
	"apptbook/internal/model"
)

func mustParse(t *testing.T, body []byte) []ParsedEvent {
	t.Helper()
	evs, err := ParseICS(testSource, body)
	require.NoError(t, err)
	return evs
}

func ids(evs []model.CalendarEvent) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID)
	}
	return out
}

func TestExpandSingleEventsByRange(t *testing.T) {
	evs := mustParse(t, calendarOf(
		`UID:inside
DTSTART:20240715T140000Z
DTEND:20240715T150000Z`,
		`UID:outside
DTSTART:20240720T140000Z
DTEND:20240720T150000Z`,
		`UID:zero
DTSTART:20240715T143000Z`,
	))

	got, err := ExpandOccurrences(evs, ExpandConfig{
		RangeStart: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.CalendarEvent{
		ID:    "inside",
		Start: model.EventTime{DateTime: "2024-07-15T14:00:00Z"},
		End:   model.EventTime{DateTime: "2024-07-15T15:00:00Z"},
	}, got[0])
}

func TestExpandWeeklyWithExdateAndOverrides(t *testing.T) {
	evs := mustParse(t, calendarOf(
		`UID:weekly
SUMMARY:Team sync
DTSTART;TZID=Europe/Berlin:20240701T090000
DTEND;TZID=Europe/Berlin:20240701T093000
RRULE:FREQ=WEEKLY;COUNT=10
EXDATE;TZID=Europe/Berlin:20240708T090000`,
		`UID:weekly
RECURRENCE-ID;TZID=Europe/Berlin:20240715T090000
SUMMARY:Team sync (moved)
DTSTART;TZID=Europe/Berlin:20240715T140000
DTEND;TZID=Europe/Berlin:20240715T143000`,
		`UID:weekly
RECURRENCE-ID;TZID=Europe/Berlin:20240722T090000
DTSTART;TZID=Europe/Berlin:20240722T090000
DTEND;TZID=Europe/Berlin:20240722T093000
STATUS:CANCELLED`,
	))

	got, err := ExpandOccurrences(evs, ExpandConfig{
		RangeStart: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// 07-01 kept, 07-08 excluded, 07-15 moved, 07-22 cancelled, 07-29 kept.
	require.Len(t, got, 3)
	assert.Equal(t, "2024-07-01T09:00:00+02:00", got[0].Start.DateTime)
	assert.Equal(t, "Europe/Berlin", got[0].Start.TimeZone)
	assert.Equal(t, "Team sync (moved)", got[1].Summary)
	assert.Equal(t, "2024-07-15T14:00:00+02:00", got[1].Start.DateTime)
	assert.Equal(t, "2024-07-29T09:00:00+02:00", got[2].Start.DateTime)
	assert.Len(t, uniq(ids(got)), 3, "instance ids are distinct")
}

func TestExpandOccurrenceStartingBeforeRange(t *testing.T) {
	evs := mustParse(t, calendarOf(`UID:daily
DTSTART:20240701T220000Z
DTEND:20240702T020000Z
RRULE:FREQ=DAILY`))

	got, err := ExpandOccurrences(evs, ExpandConfig{
		RangeStart: time.Date(2024, 7, 10, 1, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 7, 10, 2, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-07-09T22:00:00Z", got[0].Start.DateTime)
}

func TestExpandMovedOverrideFromOutsideRange(t *testing.T) {
	evs := mustParse(t, calendarOf(
		`UID:weekly
DTSTART:20240701T090000Z
DTEND:20240701T100000Z
RRULE:FREQ=WEEKLY;COUNT=2`,
		`UID:weekly
RECURRENCE-ID:20240708T090000Z
DTSTART:20240720T090000Z
DTEND:20240720T100000Z`,
	))
	got, err := ExpandOccurrences(evs, ExpandConfig{
		RangeStart: time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-07-20T09:00:00Z", got[0].Start.DateTime)
}

func TestExpandAllDayAndFloatingStayZoneless(t *testing.T) {
	evs := mustParse(t, calendarOf(
		`UID:holiday
DTSTART;VALUE=DATE:20240715
DTEND;VALUE=DATE:20240716`,
		`UID:floating
DTSTART:20240715T090000
DTEND:20240715T100000`,
	))
	got, err := ExpandOccurrences(evs, ExpandConfig{
		RangeStart: time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 7, 15, 13, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]model.CalendarEvent{}
	for _, ev := range got {
		byID[ev.ID] = ev
	}
	assert.Equal(t, model.EventTime{Date: "2024-07-15"}, byID["holiday"].Start)
	assert.Equal(t, model.EventTime{Date: "2024-07-16"}, byID["holiday"].End)
	assert.Equal(t, model.EventTime{DateTime: "2024-07-15T09:00:00"}, byID["floating"].Start)
}

func TestExpandRejectsBadRRule(t *testing.T) {
	evs := mustParse(t, calendarOf(`UID:bad
DTSTART:20240701T090000Z
DTEND:20240701T100000Z
RRULE:FREQ=SOMETIMES`))
	_, err := ExpandOccurrences(evs, ExpandConfig{
		RangeStart: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.True(t, gateway.IsKind(err, gateway.KindBackend))
}

func TestExpandRejectsEmptyRange(t *testing.T) {
	now := time.Now()
	_, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now})
	assert.Error(t, err)
}

func uniq(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}
