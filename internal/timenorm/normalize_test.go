package timenorm

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNormalizeAcceptedShapes(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name  string
		date  string
		clock string
		want  time.Time
	}{
		{"24h", "2024-07-15", "14:30", time.Date(2024, 7, 15, 14, 30, 0, 0, ny)},
		{"24h single digit hour", "2024-07-15", "9:05", time.Date(2024, 7, 15, 9, 5, 0, 0, ny)},
		{"24h midnight", "2024-07-15", "00:00", time.Date(2024, 7, 15, 0, 0, 0, 0, ny)},
		{"12h am", "2024-07-15", "10:30 AM", time.Date(2024, 7, 15, 10, 30, 0, 0, ny)},
		{"12h pm lower case", "2024-07-15", "2:15 pm", time.Date(2024, 7, 15, 14, 15, 0, 0, ny)},
		{"12h noon", "2024-07-15", "12:00 PM", time.Date(2024, 7, 15, 12, 0, 0, 0, ny)},
		{"12h midnight", "2024-07-15", "12:00 AM", time.Date(2024, 7, 15, 0, 0, 0, 0, ny)},
		{"12h multiple spaces", "2024-07-15", "11:45   Pm", time.Date(2024, 7, 15, 23, 45, 0, 0, ny)},
		{"surrounding whitespace", "  2024-07-15 ", " 14:30\t", time.Date(2024, 7, 15, 14, 30, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.date, tt.clock, ny)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.Equal(t, ny, got.Location())
		})
	}
}

func TestNormalizeOffsetFollowsZone(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	got, err := New(ny).Normalize("2024-07-15", "10:30 AM")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15T10:30:00-04:00", got.Format(time.RFC3339))

	got, err = New(ny).Normalize("2024-01-15", "10:30")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T10:30:00-05:00", got.Format(time.RFC3339))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := New(mustLoad(t, "Europe/Berlin"))
	a, err := n.Normalize("2024-05-01", "9:00 am")
	require.NoError(t, err)
	b, err := n.Normalize("2024-05-01", "9:00 am")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		clock string
	}{
		{"hour 25", "2024-07-15", "25:00"},
		{"minute 60", "2024-07-15", "10:60"},
		{"no colon", "2024-07-15", "1030"},
		{"single digit minute", "2024-07-15", "10:5"},
		{"seconds", "2024-07-15", "10:30:00"},
		{"12h hour 13", "2024-07-15", "13:00 PM"},
		{"12h hour 0", "2024-07-15", "0:30 AM"},
		{"marker without space", "2024-07-15", "10:30AM"},
		{"words", "2024-07-15", "half past ten"},
		{"empty time", "2024-07-15", ""},
		{"slashes", "07/15/2024", "10:30"},
		{"month 13", "2024-13-01", "10:30"},
		{"feb 30", "2024-02-30", "10:30"},
		{"short month", "2024-7-15", "10:30"},
		{"empty date", "", "10:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.date, tt.clock, time.UTC)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFormat)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.date, fe.Date)
			assert.Equal(t, tt.clock, fe.Time)
		})
	}
}

func TestNormalizeRejectsDSTEdges(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	_, err := Normalize("2024-03-10", "02:30", ny)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.ErrorIs(t, err, ErrNonexistentTime)

	_, err = Normalize("2024-11-03", "1:30 AM", ny)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.ErrorIs(t, err, ErrAmbiguousTime)

	got, err := Normalize("2024-03-10", "03:00", ny)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10T03:00:00-04:00", got.Format(time.RFC3339))
}

func TestNilZoneDefaultsToUTC(t *testing.T) {
	var n *Normalizer
	assert.Equal(t, time.UTC, n.Location())

	got, err := Normalize("2024-07-15", "10:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
}
