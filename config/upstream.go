package config

import "time"

// UpstreamConfig contains the upstream messaging service configuration.
type UpstreamConfig struct {
	// BaseURL is the root of the upstream HTTP API.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000"`

	// CookieName is the name of the upstream session cookie. The browser
	// holds it; every upstream call forwards it untouched.
	CookieName string `env:"COOKIE_NAME" envDefault:"token"`

	// Timeout bounds every upstream round-trip.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to upstream configuration values.
func (u *UpstreamConfig) Sanitize() {
	if u.CookieName == "" {
		u.CookieName = "token"
	}
	if u.Timeout <= 0 {
		u.Timeout = 10 * time.Second
	}
}
