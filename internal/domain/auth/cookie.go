package auth

import (
	"errors"
	"time"
)

// SameSite mirrors the cookie attribute of the same name.
type SameSite string

const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// CookieDescriptor is the transport-neutral description of a Set-Cookie
// directive. HTTPOnly is always true for session cookies.
type CookieDescriptor struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
}

var (
	errCookieName            = errors.New("cookie name is required")
	errCookieNotHTTPOnly     = errors.New("session cookie must be HttpOnly")
	errCookieNoneNeedsSecure = errors.New("SameSite=None requires Secure")
	errCookieSameSite        = errors.New("unknown SameSite value")
)

// Validate enforces the attribute invariants browsers rely on.
func (c CookieDescriptor) Validate() error {
	if c.Name == "" {
		return errCookieName
	}
	if !c.HTTPOnly {
		return errCookieNotHTTPOnly
	}
	switch c.SameSite {
	case SameSiteStrict, SameSiteLax:
	case SameSiteNone:
		if !c.Secure {
			return errCookieNoneNeedsSecure
		}
	default:
		return errCookieSameSite
	}
	return nil
}

// Expired reports whether the descriptor instructs the browser to delete the cookie.
func (c CookieDescriptor) Expired() bool {
	return c.MaxAge < 0
}
