package ics

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "apptbook/internal/log"
)

// Refreshable is implemented by Calendar.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// Refresher runs Refresh on a cron schedule (e.g. "*/15 * * * *").
type Refresher struct {
	cron    *cron.Cron
	target  Refreshable
	timeout time.Duration

	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

// NewRefresher parses spec as a five-field cron expression evaluated in loc.
func NewRefresher(spec string, loc *time.Location, target Refreshable) (*Refresher, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Refresher{
		cron:    cron.New(cron.WithLocation(loc)),
		target:  target,
		timeout: 30 * time.Second,
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, err
	}
	return r, nil
}

// Start warms the cache once and then follows the schedule.
func (r *Refresher) Start() {
	go r.run()
	r.cron.Start()
}

// Stop waits for a running refresh to finish or ctx to expire.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Last reports the outcome of the most recent run.
func (r *Refresher) Last() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.target.Refresh(ctx)
	r.mu.Lock()
	r.lastRun = time.Now()
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		appLog.Error("ics refresh failed", err)
		return
	}
	appLog.Debug("ics refresh done")
}
