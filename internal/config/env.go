package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variables read for the Google backend.
const (
	EnvGoogleClientID     = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvGoogleRefreshToken = "GOOGLE_REFRESH_TOKEN"
	EnvGoogleCalendarID   = "GOOGLE_CALENDAR_ID"
)

// CredentialVars are the variables that must all be set for the Google backend.
var CredentialVars = []string{EnvGoogleClientID, EnvGoogleClientSecret, EnvGoogleRefreshToken}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, errors.Wrapf(err, "load env file %s", path)
	}
	return true, nil
}

// ApplyEnv copies credentials from the environment into c. A set
// GOOGLE_CALENDAR_ID overrides google.calendar_id.
func (c *Config) ApplyEnv() {
	c.Google.ClientID = os.Getenv(EnvGoogleClientID)
	c.Google.ClientSecret = os.Getenv(EnvGoogleClientSecret)
	c.Google.RefreshToken = os.Getenv(EnvGoogleRefreshToken)
	if id := os.Getenv(EnvGoogleCalendarID); id != "" {
		c.Google.CalendarID = id
	}
}

// EnvStatus reports, per credential variable, whether it is set. Values are
// never returned.
func EnvStatus() map[string]bool {
	out := make(map[string]bool, len(CredentialVars)+1)
	for _, name := range append(CredentialVars, EnvGoogleCalendarID) {
		out[name] = os.Getenv(name) != ""
	}
	return out
}

// MissingCredentials lists the credential variables that are unset.
func MissingCredentials() []string {
	var missing []string
	for _, name := range CredentialVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
