package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"apptbook/internal/booking"
	appLog "apptbook/internal/log"
	"apptbook/internal/model"
)

// Backend names accepted by the "backend" key.
const (
	BackendGoogle = "google"
	BackendICS    = "ics"
	BackendMemory = "memory"
)

const (
	defaultListen             = "127.0.0.1:8080"
	defaultTimezone           = "America/New_York"
	defaultServiceDuration    = time.Hour
	defaultMaxEventDuration   = 24 * time.Hour
	defaultServiceLabel       = "Appointment"
	defaultOpen               = "09:00"
	defaultClose              = "17:00"
	defaultCalendarID         = "primary"
	defaultICSStorePath       = "./data/bookings.ics"
	defaultICSCacheDir        = "./data/ics-cache"
	defaultICSRefresh         = "*/15 * * * *"
	defaultRateLimitPerMinute = 30
	defaultRateLimitBurst     = 5
)

// ICSSource describes a single read-only ICS subscription.
type ICSSource struct {
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// ICSConfig configures the ICS backend: a local calendar file that
// bookings are written to, plus subscriptions that only block slots.
type ICSConfig struct {
	StorePath string `yaml:"store_path" json:"store_path"`
	CacheDir  string `yaml:"cache_dir" json:"cache_dir"`
	// Refresh is a cron schedule for warming the subscription cache.
	Refresh string      `yaml:"refresh" json:"refresh"`
	Sources []ICSSource `yaml:"sources" json:"sources"`
}

// GoogleConfig configures the Google Calendar backend. Credentials are
// read from the environment only and never written back to disk.
type GoogleConfig struct {
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// BaseURL overrides the Calendar API root; empty means the public API.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	ClientID     string `yaml:"-" json:"-"`
	ClientSecret string `yaml:"-" json:"-"`
	RefreshToken string `yaml:"-" json:"-"`
}

// HasCredentials reports whether all three OAuth values are present.
func (g GoogleConfig) HasCredentials() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

type BusinessHoursConfig struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

type RateLimitConfig struct {
	// PerMinute is the sustained request rate per client. Zero or less
	// disables limiting.
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone requests are interpreted in (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// ServiceDuration is the length of every booked slot.
	ServiceDuration time.Duration `yaml:"service_duration" json:"service_duration"`

	// MaxEventDuration bounds how far before a slot an overlapping event
	// may start and still be seen by the conflict check.
	MaxEventDuration time.Duration `yaml:"max_event_duration" json:"max_event_duration"`

	DefaultServiceLabel string `yaml:"default_service_label" json:"default_service_label"`

	Reminders []model.Reminder `yaml:"reminders" json:"reminders"`

	BusinessHours BusinessHoursConfig `yaml:"business_hours" json:"business_hours"`

	// Backend selects the calendar: "google", "ics" or "memory".
	Backend string `yaml:"backend" json:"backend"`

	Google GoogleConfig `yaml:"google" json:"google"`
	ICS    ICSConfig    `yaml:"ics" json:"ics"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Log LogConfig `yaml:"log" json:"log"`

	location *time.Location
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:              defaultListen,
		Timezone:            defaultTimezone,
		ServiceDuration:     defaultServiceDuration,
		MaxEventDuration:    defaultMaxEventDuration,
		DefaultServiceLabel: defaultServiceLabel,
		Reminders:           booking.DefaultReminders(),
		BusinessHours:       BusinessHoursConfig{Open: defaultOpen, Close: defaultClose},
		Backend:             BackendMemory,
		Google:              GoogleConfig{CalendarID: defaultCalendarID},
		ICS: ICSConfig{
			StorePath: defaultICSStorePath,
			CacheDir:  defaultICSCacheDir,
			Refresh:   defaultICSRefresh,
			Sources:   []ICSSource{},
		},
		RateLimit:   RateLimitConfig{PerMinute: defaultRateLimitPerMinute, Burst: defaultRateLimitBurst},
		CORSOrigins: []string{},
		Log:         LogConfig{Level: "INFO", Format: "text"},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly. Every fallback is logged.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("unknown timezone; falling back to UTC", err, "timezone", c.Timezone)
		c.Timezone = "UTC"
		loc = time.UTC
	}
	c.location = loc

	if c.ServiceDuration <= 0 {
		if c.ServiceDuration < 0 {
			appLog.Warn("service_duration must be positive; using default", "value", c.ServiceDuration.String())
		}
		c.ServiceDuration = defaultServiceDuration
	}
	if c.MaxEventDuration <= 0 {
		if c.MaxEventDuration < 0 {
			appLog.Warn("max_event_duration must be positive; using default", "value", c.MaxEventDuration.String())
		}
		c.MaxEventDuration = defaultMaxEventDuration
	}
	if strings.TrimSpace(c.DefaultServiceLabel) == "" {
		c.DefaultServiceLabel = defaultServiceLabel
	}
	if c.Reminders == nil {
		c.Reminders = booking.DefaultReminders()
	}
	for i := range c.Reminders {
		c.Reminders[i].Method = strings.ToLower(strings.TrimSpace(c.Reminders[i].Method))
		if c.Reminders[i].Minutes < 0 {
			appLog.Warn("negative reminder minutes; using 0", "method", c.Reminders[i].Method)
			c.Reminders[i].Minutes = 0
		}
	}
	if c.BusinessHours.Open == "" {
		c.BusinessHours.Open = defaultOpen
	}
	if c.BusinessHours.Close == "" {
		c.BusinessHours.Close = defaultClose
	}

	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = defaultCalendarID
	}
	if c.ICS.StorePath == "" {
		c.ICS.StorePath = defaultICSStorePath
	}
	if c.ICS.CacheDir == "" {
		c.ICS.CacheDir = defaultICSCacheDir
	}
	if c.ICS.Refresh == "" {
		c.ICS.Refresh = defaultICSRefresh
	}
	if c.ICS.Sources == nil {
		c.ICS.Sources = []ICSSource{}
	}
	for i := range c.ICS.Sources {
		if c.ICS.Sources[i].ID == "" {
			if c.ICS.Sources[i].Name != "" {
				c.ICS.Sources[i].ID = c.ICS.Sources[i].Name
			} else {
				c.ICS.Sources[i].ID = c.ICS.Sources[i].URL
			}
		}
	}
	if c.RateLimit.PerMinute > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGoogle, BackendICS, BackendMemory:
	default:
		return errors.Errorf("unknown backend %q (want google, ics or memory)", c.Backend)
	}
	for _, src := range c.ICS.Sources {
		if strings.TrimSpace(src.URL) == "" {
			return errors.Errorf("ics source %q has no url", src.ID)
		}
	}
	return nil
}

// Location returns the zone requests are interpreted in. It is resolved by
// Normalize; a config that was never normalized reports UTC.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled over the defaults, normalized
//     and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with the
// final file at 0600. Credentials are never serialized.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create config dir %s", dir)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	tmp, err := os.CreateTemp(dir, ".apptbook-config-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.Wrapf(err, "chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename %s to %s", tmpName, path)
	}
	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
