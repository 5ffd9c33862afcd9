package ics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshFunc func(ctx context.Context) error

func (f refreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

func TestRefresherWarmsOnStart(t *testing.T) {
	called := make(chan struct{}, 1)
	r, err := NewRefresher("@every 1h", time.UTC, refreshFunc(func(ctx context.Context) error {
		select {
		case called <- struct{}{}:
		default:
		}
		return errors.New("feed down")
	}))
	require.NoError(t, err)

	r.Start()
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)

	assert.Eventually(t, func() bool {
		_, lastErr := r.Last()
		return lastErr != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRefresherRejectsBadSchedule(t *testing.T) {
	_, err := NewRefresher("every so often", nil, refreshFunc(func(context.Context) error { return nil }))
	assert.Error(t, err)
}
