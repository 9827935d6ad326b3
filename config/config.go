package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the process configuration, parsed from the environment with
// github.com/caarlos0/env. Each sub-struct lives next to its Sanitize rules.
type AppConfig struct {
	// IsDev relaxes production guardrails (cookie Secure flag, required secret, mock provider).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Session storage configuration
	Sessions SessionConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize normalises values after env parsing. Validate expects sanitised input.
func (c *AppConfig) Sanitize() {
	if !c.IsDev {
		c.IsDev = devFromNodeEnv(os.Getenv("NODE_ENV"))
	}

	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Sessions.Sanitize()
	c.Postgres.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()
}

// Validate rejects configurations that would produce an insecure or
// non-functional deployment. Call after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Auth.Validate(c.IsDev); err != nil {
		errs = append(errs, err)
	}
	if err := c.Sessions.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// devFromNodeEnv honours NODE_ENV for deployments that share env files with
// the browser client.
func devFromNodeEnv(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "development", "dev":
		return true
	default:
		return false
	}
}

// GetEnabledServices parses SERVICES.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled reports whether SERVICES includes http.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsReaperEnabled reports whether SERVICES includes reaper.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
