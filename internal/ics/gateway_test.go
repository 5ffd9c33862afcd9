package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptbook/internal/gateway"
	"apptbook/internal/model"
)

func TestStoreAppendWritesBookingAndAlarms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar", "bookings.ics")
	store := NewStore(path)

	start := time.Date(2024, 7, 15, 14, 30, 0, 0, time.UTC)
	created, err := store.Append(model.Interval{Start: start, End: start.Add(time.Hour)}, model.EventMetadata{
		Label:       "Consultation",
		Description: "first visit",
		Reminders:   []model.Reminder{{Method: "email", Minutes: 1440}, {Method: "popup", Minutes: 15}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(created.ID, "@apptbook"))
	assert.Contains(t, created.Link, "#"+created.ID)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "DTSTART:20240715T143000Z")
	assert.Contains(t, text, "DTEND:20240715T153000Z")
	assert.Contains(t, text, "SUMMARY:Consultation")
	assert.Contains(t, text, "TRIGGER:-PT1440M")
	assert.Contains(t, text, "TRIGGER:-PT15M")
	assert.Contains(t, text, "ACTION:EMAIL")
	assert.Contains(t, text, "ACTION:DISPLAY")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	evs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, created.ID, evs[0].UID)
	assert.True(t, start.Equal(evs[0].Start))
}

func TestStoreLoadMissingFileIsEmpty(t *testing.T) {
	evs, err := NewStore(filepath.Join(t.TempDir(), "none.ics")).Load()
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestStoreCorruptFileIsBackendError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ics")
	require.NoError(t, os.WriteFile(path, []byte("not a calendar"), 0o600))
	store := NewStore(path)

	_, err := store.Load()
	assert.True(t, gateway.IsKind(err, gateway.KindBackend))

	now := time.Now()
	_, err = store.Append(model.Interval{Start: now, End: now.Add(time.Hour)}, model.EventMetadata{Label: "x"})
	assert.True(t, gateway.IsKind(err, gateway.KindBackend))
}

func TestCalendarCombinesStoreAndSubscriptions(t *testing.T) {
	feed := calendarOf(`UID:external
SUMMARY:Dentist
DTSTART;TZID=America/New_York:20240715T090000
DTEND;TZID=America/New_York:20240715T100000`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(feed)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cal := NewCalendar(
		NewStore(filepath.Join(dir, "bookings.ics")),
		NewFetcher(filepath.Join(dir, "cache"), srv.Client()),
		[]Source{{ID: "dentist", URL: srv.URL + "/feed.ics"}},
	)
	ctx := context.Background()

	start := time.Date(2024, 7, 15, 15, 0, 0, 0, time.UTC)
	created, err := cal.CreateEvent(ctx, model.Interval{Start: start, End: start.Add(time.Hour)}, model.EventMetadata{Label: "Haircut"})
	require.NoError(t, err)

	got, err := cal.ListEvents(ctx, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{created.ID, "external"}, ids(got))
	require.NoError(t, cal.Refresh(ctx))
}

func TestCalendarUnreachableSubscriptionIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	client := srv.Client()
	srv.Close()

	dir := t.TempDir()
	cal := NewCalendar(
		NewStore(filepath.Join(dir, "bookings.ics")),
		NewFetcher(filepath.Join(dir, "cache"), client),
		[]Source{{ID: "gone", URL: base + "/feed.ics"}},
	)
	_, err := cal.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.True(t, gateway.IsKind(err, gateway.KindUnavailable))
	assert.Error(t, cal.Refresh(context.Background()))
}

func TestFetcherConditionalRequestsAndCacheFallback(t *testing.T) {
	feed := calendarOf("UID:a\nDTSTART:20240715T140000Z\nDTEND:20240715T150000Z")
	var hits, notModified, fail atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(feed)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "feed", URL: srv.URL + "/a.ics"}
	ctx := context.Background()

	res, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, feed, res.Body)

	res, err = f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, feed, res.Body)
	assert.Equal(t, int32(1), notModified.Load())

	fail.Store(1)
	res, err = f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcherErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.ics") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	_, err := f.FetchOne(context.Background(), Source{ID: "m", URL: srv.URL + "/missing.ics"})
	assert.True(t, gateway.IsKind(err, gateway.KindBackend))

	_, err = f.FetchOne(context.Background(), Source{ID: "d", URL: srv.URL + "/down.ics"})
	assert.True(t, gateway.IsKind(err, gateway.KindUnavailable))

	_, err = f.FetchOne(context.Background(), Source{ID: "empty"})
	assert.Error(t, err)
}
