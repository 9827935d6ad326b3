package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper runs the expired-session sweeper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SessionBackend selects where sessions and flash messages live.
type SessionBackend string

const (
	// SessionBackendRedis stores sessions in Redis with native key expiry.
	SessionBackendRedis SessionBackend = "redis"
	// SessionBackendMemory stores sessions in process; single instance only.
	SessionBackendMemory SessionBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "memory":
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: redis, memory)", v)
	}
}

// SessionConfig contains session storage configuration.
type SessionConfig struct {
	Backend SessionBackend `env:"SESSION_BACKEND" envDefault:"redis"`

	// KeyPrefix namespaces session keys in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"session:"`

	// SweepInterval is the reaper tick for backends without native expiry.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`
}

// Sanitize applies guardrails to session storage configuration values.
func (s *SessionConfig) Sanitize() {
	if s.Backend == "" {
		s.Backend = SessionBackendRedis
	}
	if s.KeyPrefix == "" {
		s.KeyPrefix = "session:"
	}
	// Enforce a minimum interval so a misconfiguration cannot spin the sweeper
	if s.SweepInterval < time.Minute {
		s.SweepInterval = time.Minute
	}
}

// Validate checks the session storage configuration.
func (s *SessionConfig) Validate() error {
	switch s.Backend {
	case SessionBackendRedis, SessionBackendMemory:
		return nil
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q", s.Backend)
	}
}
