package conflict

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptbook/internal/model"
)

func loadLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func timed(id, start, end, zone string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:    id,
		Start: model.EventTime{DateTime: start, TimeZone: zone},
		End:   model.EventTime{DateTime: end, TimeZone: zone},
	}
}

func allDay(id, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:    id,
		Start: model.EventTime{Date: start},
		End:   model.EventTime{Date: end},
	}
}

func TestResolveTimed(t *testing.T) {
	ny := loadLoc(t, "America/New_York")

	occ, err := Resolve(timed("a", "2024-07-15T14:00:00Z", "2024-07-15T15:00:00Z", ""), ny)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15T10:00:00-04:00", occ.Start.Format(time.RFC3339))
	assert.False(t, occ.AllDay)

	occ, err = Resolve(timed("b", "2024-07-15T10:00:00", "2024-07-15T11:00:00", "Europe/Berlin"), ny)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15T08:00:00Z", occ.Start.UTC().Format(time.RFC3339))
	assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))

	occ, err = Resolve(timed("c", "2024-07-15T10:00", "2024-07-15T10:30", "America/New_York"), ny)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, occ.End.Sub(occ.Start))
}

func TestResolveAllDay(t *testing.T) {
	ny := loadLoc(t, "America/New_York")

	occ, err := Resolve(allDay("h", "2024-07-15", "2024-07-16"), ny)
	require.NoError(t, err)
	assert.True(t, occ.AllDay)
	assert.Equal(t, "2024-07-15T00:00:00-04:00", occ.Start.Format(time.RFC3339))
	assert.Equal(t, "2024-07-16T00:00:00-04:00", occ.End.Format(time.RFC3339))

	occ, err = Resolve(allDay("same", "2024-07-15", "2024-07-15"), ny)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, occ.End.Sub(occ.Start), "end date not after start means next day")

	occ, err = Resolve(allDay("multi", "2024-07-15", "2024-07-18"), ny)
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, occ.End.Sub(occ.Start))
}

func TestResolveMalformed(t *testing.T) {
	tests := []struct {
		name string
		ev   model.CalendarEvent
	}{
		{"no zone", timed("x", "2024-07-15T10:00:00", "2024-07-15T11:00:00", "")},
		{"unknown zone", timed("x", "2024-07-15T10:00:00", "2024-07-15T11:00:00", "Mars/Base")},
		{"garbage", timed("x", "tomorrow", "2024-07-15T11:00:00Z", "")},
		{"empty", model.CalendarEvent{ID: "x"}},
		{"end before start", timed("x", "2024-07-15T11:00:00Z", "2024-07-15T10:00:00Z", "")},
		{"zero length", timed("x", "2024-07-15T11:00:00Z", "2024-07-15T11:00:00Z", "")},
		{"gap wall clock", timed("x", "2024-03-10T02:30:00", "2024-03-10T03:30:00", "America/New_York")},
		{"mixed kinds", model.CalendarEvent{ID: "x", Start: model.EventTime{Date: "2024-07-15"}, End: model.EventTime{DateTime: "2024-07-15T11:00:00Z"}}},
		{"bad date", allDay("x", "15/07/2024", "2024-07-16")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.ev, time.UTC)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
