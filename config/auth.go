package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/target/sessiond/internal/domain/origin"
	"golang.org/x/net/publicsuffix"
)

// ProviderMode selects the identity provider behind /auth/google.
type ProviderMode string

const (
	// ProviderModeOAuth uses OIDC discovery against the configured issuer.
	ProviderModeOAuth ProviderMode = "oauth"
	// ProviderModeMock uses the dev provider (for development only).
	ProviderModeMock ProviderMode = "mock"
	// ProviderModeNone disables provider login.
	ProviderModeNone ProviderMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for ProviderMode.
func (m *ProviderMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock", "none":
		*m = ProviderMode(v)
		return nil
	default:
		return fmt.Errorf("invalid ProviderMode: %q (valid options: oauth, mock, none)", v)
	}
}

const (
	minSecretLength = 32
	hostPrefix      = "__Host-"
	securePrefix    = "__Secure-"
)

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"  envDefault:"http://localhost:3000/auth/google/callback"`
	Scopes       []string `env:"SCOPES"        envDefault:"openid,email,profile"`
	// Issuer accepts the issuer URL or its discovery document URL.
	Issuer string `env:"ISSUER" envDefault:"https://accounts.google.com"`
}

// DevAuthConfig controls the mock provider identity.
// Used when AUTH_PROVIDER_MODE=mock for development and testing.
type DevAuthConfig struct {
	Email string `env:"EMAIL" envDefault:"dev@example.com"`
	Name  string `env:"NAME"  envDefault:"Dev User"`
}

// AuthConfig groups cookie, origin, session, and provider configuration.
type AuthConfig struct {
	// ClientBaseURL is where the browser lands after provider login and /auth/error.
	ClientBaseURL string `env:"AUTH_CLIENT_BASE_URL" envDefault:"http://localhost:5173"`

	// AllowedOrigins lists origins allowed to make credentialed requests.
	// Defaults to the origin of ClientBaseURL.
	AllowedOrigins []string `env:"AUTH_ALLOWED_ORIGINS"`

	// CrossOrigin selects SameSite=None; Secure cookies for a client on another site.
	// When false cookies are SameSite=Lax and Secure outside DEV.
	CrossOrigin bool `env:"AUTH_CROSS_ORIGIN" envDefault:"true"`

	SessionTTL      time.Duration `env:"AUTH_SESSION_TTL"      envDefault:"336h"`
	SlidingSessions bool          `env:"AUTH_SLIDING_SESSIONS" envDefault:"false"`

	CookieName   string `env:"AUTH_COOKIE_NAME"   envDefault:"cookie_token"`
	CookieDomain string `env:"AUTH_COOKIE_DOMAIN"`

	// SessionSecret keys the HMAC applied to session ids before storage.
	// Required outside DEV.
	SessionSecret string `env:"SESSION_SECRET"`

	ProviderMode    ProviderMode  `env:"AUTH_PROVIDER_MODE"    envDefault:"oauth"`
	ProviderTimeout time.Duration `env:"AUTH_PROVIDER_TIMEOUT" envDefault:"10s"`
	FlashTTL        time.Duration `env:"AUTH_FLASH_TTL"        envDefault:"5m"`

	// OAuth configuration (used when ProviderMode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when ProviderMode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims list entries, lowercases the cookie domain, and derives
// AllowedOrigins from ClientBaseURL when unset.
func (a *AuthConfig) Sanitize() {
	a.ClientBaseURL = strings.TrimRight(strings.TrimSpace(a.ClientBaseURL), "/")
	a.CookieName = strings.TrimSpace(a.CookieName)
	if a.CookieName == "" {
		a.CookieName = "cookie_token"
	}
	a.CookieDomain = strings.ToLower(strings.TrimSpace(a.CookieDomain))

	origins := make([]string, 0, len(a.AllowedOrigins))
	for _, o := range a.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 && a.ClientBaseURL != "" {
		if u, err := url.Parse(a.ClientBaseURL); err == nil && u.Scheme != "" && u.Host != "" {
			origins = append(origins, u.Scheme+"://"+u.Host)
		}
	}
	a.AllowedOrigins = origins

	if a.ProviderMode == "" {
		a.ProviderMode = ProviderModeOAuth
	}
	if a.ProviderTimeout <= 0 {
		a.ProviderTimeout = 10 * time.Second
	}
	if a.FlashTTL <= 0 {
		a.FlashTTL = 5 * time.Minute
	}
}

// SecureCookies reports whether cookies carry the Secure attribute.
func (a *AuthConfig) SecureCookies(isDev bool) bool {
	return a.CrossOrigin || !isDev
}

// Validate checks the auth configuration. isDev relaxes the secret and
// provider requirements.
func (a *AuthConfig) Validate(isDev bool) error {
	var errs []error

	if err := validateClientBaseURL(a.ClientBaseURL); err != nil {
		errs = append(errs, err)
	}
	if _, err := origin.NewPolicy(a.AllowedOrigins); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_ALLOWED_ORIGINS: %w", err))
	}
	if a.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_SESSION_TTL must be positive, got %s", a.SessionTTL))
	}
	if err := a.validateCookie(isDev); err != nil {
		errs = append(errs, err)
	}
	if !isDev && len(a.SessionSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes outside DEV", minSecretLength))
	}

	switch a.ProviderMode {
	case ProviderModeOAuth:
		if a.OAuth.ClientID == "" || a.OAuth.ClientSecret == "" {
			errs = append(errs, errors.New("OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET are required when AUTH_PROVIDER_MODE=oauth"))
		}
		if a.OAuth.RedirectURL == "" {
			errs = append(errs, errors.New("OAUTH_REDIRECT_URL is required when AUTH_PROVIDER_MODE=oauth"))
		}
	case ProviderModeMock:
		if !isDev {
			errs = append(errs, errors.New("AUTH_PROVIDER_MODE=mock is only allowed with DEV=true"))
		}
	case ProviderModeNone:
	default:
		errs = append(errs, fmt.Errorf("invalid AUTH_PROVIDER_MODE %q", a.ProviderMode))
	}

	return errors.Join(errs...)
}

func (a *AuthConfig) validateCookie(isDev bool) error {
	name := a.CookieName
	if strings.ContainsAny(name, " \t;,=") {
		return fmt.Errorf("AUTH_COOKIE_NAME %q contains invalid characters", name)
	}
	prefixed := strings.HasPrefix(name, hostPrefix) || strings.HasPrefix(name, securePrefix)
	if prefixed && !a.SecureCookies(isDev) {
		return fmt.Errorf("AUTH_COOKIE_NAME %q requires Secure cookies", name)
	}
	if a.CookieDomain == "" {
		return nil
	}
	if strings.HasPrefix(name, hostPrefix) {
		return fmt.Errorf("AUTH_COOKIE_DOMAIN cannot be combined with the %s cookie prefix", hostPrefix)
	}
	return ValidateCookieDomain(a.CookieDomain)
}

// ValidateCookieDomain rejects domains on the public suffix list, where
// browsers refuse to store cookies or cookies leak to unrelated sites.
func ValidateCookieDomain(domain string) error {
	d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if d == "" || strings.ContainsAny(d, "/:@ ") {
		return fmt.Errorf("AUTH_COOKIE_DOMAIN %q is not a valid domain", domain)
	}
	if d == "localhost" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(d); err != nil {
		return fmt.Errorf("AUTH_COOKIE_DOMAIN %q is a public suffix", domain)
	}
	return nil
}

func validateClientBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("AUTH_CLIENT_BASE_URL %q must be an absolute http(s) URL", raw)
	}
	return nil
}
