package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - http.go: HTTP server configuration
//   - upstream.go: Upstream messaging service configuration
//   - guard.go: Mutation guard configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, etc.)
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Upstream messaging service configuration
	Upstream UpstreamConfig `envPrefix:"UPSTREAM_"`

	// Mutation guard configuration
	Guard GuardConfig `envPrefix:"GUARD_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Upstream.Sanitize()
	c.Guard.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
