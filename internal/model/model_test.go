package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlot(t *testing.T) {
	start := time.Date(2024, 7, 15, 10, 30, 0, 0, time.UTC)

	slot, err := NewSlot(start, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, start, slot.Start)
	assert.Equal(t, start.Add(time.Hour), slot.End)
	assert.Equal(t, time.Hour, slot.Duration())

	for _, d := range []time.Duration{0, -time.Minute} {
		_, err := NewSlot(start, d)
		assert.ErrorIs(t, err, ErrNonPositiveDuration)
	}
}

func TestEventTimeAllDay(t *testing.T) {
	assert.True(t, EventTime{Date: "2024-07-15"}.AllDay())
	assert.False(t, EventTime{DateTime: "2024-07-15T10:00:00Z"}.AllDay())
	assert.False(t, EventTime{}.AllDay())
}
