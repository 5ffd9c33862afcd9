// Package app wires configuration into a ready booking pipeline.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"apptbook/internal/booking"
	"apptbook/internal/config"
	"apptbook/internal/conflict"
	"apptbook/internal/gateway"
	"apptbook/internal/gateway/google"
	"apptbook/internal/gateway/memory"
	"apptbook/internal/ics"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
	"apptbook/internal/timenorm"
)

const fetchTimeout = 20 * time.Second

// App holds the long-lived components built from one Config.
type App struct {
	Config   *config.Config
	Gateway  gateway.Gateway
	Detector *conflict.Detector
	Pipeline *booking.Pipeline
	Hours    conflict.BusinessHours

	refresher *ics.Refresher
}

// Build selects the calendar backend named by cfg.Backend and assembles
// the pipeline around it.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	var (
		gw        gateway.Gateway
		refresher *ics.Refresher
	)

	switch cfg.Backend {
	case config.BackendGoogle:
		if !cfg.Google.HasCredentials() {
			return nil, errors.Errorf("google backend needs %s", strings.Join(config.MissingCredentials(), ", "))
		}
		client := google.NewHTTPClient(ctx, google.Credentials{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RefreshToken: cfg.Google.RefreshToken,
		})
		g, err := google.New(ctx, google.Options{
			CalendarID: cfg.Google.CalendarID,
			BaseURL:    cfg.Google.BaseURL,
			HTTPClient: client,
		})
		if err != nil {
			return nil, err
		}
		gw = g

	case config.BackendICS:
		sources := make([]ics.Source, 0, len(cfg.ICS.Sources))
		for _, s := range cfg.ICS.Sources {
			sources = append(sources, ics.Source{ID: s.ID, URL: s.URL, Name: s.Name})
		}
		fetcher := ics.NewFetcher(cfg.ICS.CacheDir, &http.Client{Timeout: fetchTimeout})
		cal := ics.NewCalendar(ics.NewStore(cfg.ICS.StorePath), fetcher, sources)
		if len(sources) > 0 {
			r, err := ics.NewRefresher(cfg.ICS.Refresh, cfg.Location(), cal)
			if err != nil {
				return nil, errors.Wrapf(err, "ics refresh schedule %q", cfg.ICS.Refresh)
			}
			refresher = r
		}
		gw = cal

	case config.BackendMemory:
		appLog.Warn("using in-memory calendar; bookings are lost on exit")
		gw = memory.New()

	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}

	a, err := New(cfg, gw)
	if err != nil {
		return nil, err
	}
	a.refresher = refresher
	return a, nil
}

// New assembles the pipeline around an existing gateway.
func New(cfg *config.Config, gw gateway.Gateway) (*App, error) {
	hours, err := conflict.ParseBusinessHours(cfg.BusinessHours.Open, cfg.BusinessHours.Close)
	if err != nil {
		return nil, errors.Wrap(err, "business_hours")
	}
	loc := cfg.Location()
	det := conflict.NewDetector(gw, conflict.Options{
		Location:         loc,
		MaxEventDuration: cfg.MaxEventDuration,
	})
	p := booking.NewPipeline(timenorm.New(loc), det, gw, booking.Options{
		ServiceDuration:     cfg.ServiceDuration,
		DefaultServiceLabel: cfg.DefaultServiceLabel,
		Reminders:           cfg.Reminders,
	})
	return &App{Config: cfg, Gateway: gw, Detector: det, Pipeline: p, Hours: hours}, nil
}

// Start begins background work. It is a no-op unless the ICS backend has
// subscriptions to refresh.
func (a *App) Start() {
	if a.refresher != nil {
		appLog.Info("starting ics refresher", "schedule", a.Config.ICS.Refresh)
		a.refresher.Start()
	}
}

// Close stops background work, waiting at most until ctx expires.
func (a *App) Close(ctx context.Context) {
	if a.refresher != nil {
		a.refresher.Stop(ctx)
	}
}

// Slots lists free slots of the configured service duration on date
// ("YYYY-MM-DD") within business hours.
func (a *App) Slots(ctx context.Context, date string) ([]model.Interval, error) {
	day, err := timenorm.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return a.Detector.FreeSlots(ctx, day, a.Hours, a.Pipeline.ServiceDuration())
}

// Events lists the resolved events overlapping date ("YYYY-MM-DD").
func (a *App) Events(ctx context.Context, date string) ([]model.Occurrence, error) {
	day, err := timenorm.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return a.Detector.EventsOn(ctx, day)
}
