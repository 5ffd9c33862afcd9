package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"apptbook/internal/gateway"
	"apptbook/internal/model"
)

const localSourceID = "local"

// Store is a writable calendar kept in one .ics file. Bookings are appended
// as VEVENTs with UTC DTSTART/DTEND and one VALARM per reminder.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore returns a Store backed by path. The file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// Load parses the store file. A missing file is an empty calendar.
func (s *Store) Load() ([]ParsedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, gateway.Unavailable("read calendar file", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return ParseICS(Source{ID: localSourceID, URL: "file://" + s.path}, body)
}

// Append writes one booking and returns its UID.
func (s *Store) Append(slot model.Interval, meta model.EventMetadata) (model.CreatedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.read()
	if err != nil {
		return model.CreatedEvent{}, err
	}

	uid := uuid.NewString() + "@apptbook"
	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(s.now())
	ev.SetStartAt(slot.Start)
	ev.SetEndAt(slot.End)
	ev.SetSummary(meta.Label)
	if meta.Description != "" {
		ev.SetDescription(meta.Description)
	}
	for _, r := range meta.Reminders {
		alarm := ev.AddAlarm()
		if r.Method == model.ReminderEmail {
			alarm.SetAction(ical.ActionEmail)
			alarm.SetSummary(meta.Label)
		} else {
			alarm.SetAction(ical.ActionDisplay)
		}
		alarm.SetDescription(meta.Label)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", r.Minutes))
	}

	if err := s.write(cal); err != nil {
		return model.CreatedEvent{}, err
	}

	link := s.path
	if abs, err := filepath.Abs(s.path); err == nil {
		link = abs
	}
	return model.CreatedEvent{ID: uid, Link: "file://" + link + "#" + uid}, nil
}

func (s *Store) read() (*ical.Calendar, error) {
	body, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cal := ical.NewCalendarFor("apptbook")
			cal.SetMethod(ical.MethodPublish)
			return cal, nil
		}
		return nil, gateway.Unavailable("read calendar file", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		cal := ical.NewCalendarFor("apptbook")
		cal.SetMethod(ical.MethodPublish)
		return cal, nil
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, gateway.Backend("", "calendar file is not valid iCalendar", err)
	}
	return cal, nil
}

// write replaces the file atomically via a temp file + rename.
func (s *Store) write(cal *ical.Calendar) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return gateway.Unavailable("create calendar dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".apptbook-calendar-*.tmp")
	if err != nil {
		return gateway.Unavailable("create temp calendar file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := cal.SerializeTo(tmp); err != nil {
		tmp.Close()
		return gateway.Unavailable("write calendar file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return gateway.Unavailable("sync calendar file", err)
	}
	if err := tmp.Close(); err != nil {
		return gateway.Unavailable("close calendar file", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return gateway.Unavailable("chmod calendar file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return gateway.Unavailable("replace calendar file", err)
	}
	return nil
}
