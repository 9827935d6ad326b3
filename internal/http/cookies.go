package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/service"
)

const (
	// DefaultCookieName is the session cookie name browsers carry.
	DefaultCookieName = "cookie_token"

	stateCookieName = "oauth_state"
	nonceCookieName = "oauth_nonce"
	flashCookieName = "auth_flash"

	// transientCookieMaxAge bounds state, nonce, and flash cookies (10 minutes).
	transientCookieMaxAge = 600
)

// CookiePolicy decides the attributes of every cookie the API writes.
type CookiePolicy struct {
	Name   string
	Domain string
	TTL    time.Duration
	// CrossOrigin selects SameSite=None; Secure for clients on another site.
	CrossOrigin bool
	// Secure is forced on when CrossOrigin is set.
	Secure bool
}

// SessionCookieCodec encodes sessions into Set-Cookie directives and reads
// session ids back from requests.
type SessionCookieCodec struct {
	name     string
	domain   string
	maxAge   int
	secure   bool
	sameSite domainauth.SameSite
}

// NewSessionCookieCodec validates p and returns a codec.
func NewSessionCookieCodec(p CookiePolicy) (*SessionCookieCodec, error) {
	name := p.Name
	if name == "" {
		name = DefaultCookieName
	}
	if p.TTL <= 0 {
		return nil, errors.New("cookie ttl must be positive")
	}
	c := &SessionCookieCodec{
		name:     name,
		domain:   p.Domain,
		maxAge:   int(p.TTL / time.Second),
		secure:   p.Secure || p.CrossOrigin,
		sameSite: domainauth.SameSiteLax,
	}
	if p.CrossOrigin {
		c.sameSite = domainauth.SameSiteNone
	}
	if err := c.Expire().Validate(); err != nil {
		return nil, fmt.Errorf("invalid cookie policy: %w", err)
	}
	return c, nil
}

// Name returns the session cookie name.
func (c *SessionCookieCodec) Name() string { return c.name }

// Encode describes the cookie carrying sess.
func (c *SessionCookieCodec) Encode(sess domainauth.Session) domainauth.CookieDescriptor {
	d := c.base(c.name, sess.ID)
	d.MaxAge = c.maxAge
	return d
}

// Expire describes the overwrite that deletes the session cookie.
func (c *SessionCookieCodec) Expire() domainauth.CookieDescriptor {
	return c.expire(c.name)
}

// Decode returns the first well-formed session id among the cookies in a raw
// Cookie header. Missing or malformed values yield ("", false).
func (c *SessionCookieCodec) Decode(rawCookieHeader string) (string, bool) {
	if rawCookieHeader == "" {
		return "", false
	}
	req := http.Request{Header: http.Header{"Cookie": {rawCookieHeader}}}
	for _, ck := range req.Cookies() {
		if ck.Name == c.name && service.ValidSessionID(ck.Value) {
			return ck.Value, true
		}
	}
	return "", false
}

// FromRequest reads the session id from r's Cookie headers.
func (c *SessionCookieCodec) FromRequest(r *http.Request) (string, bool) {
	for _, line := range r.Header.Values("Cookie") {
		if id, ok := c.Decode(line); ok {
			return id, true
		}
	}
	return "", false
}

// transient describes a short-lived cookie used during the provider flow.
// Lax and None both survive the IdP's top-level redirect back to the callback.
func (c *SessionCookieCodec) transient(name, value string) domainauth.CookieDescriptor {
	d := c.base(name, value)
	d.MaxAge = transientCookieMaxAge
	return d
}

func (c *SessionCookieCodec) expire(name string) domainauth.CookieDescriptor {
	d := c.base(name, "")
	d.MaxAge = -1
	d.Expires = time.Unix(0, 0).UTC()
	return d
}

func (c *SessionCookieCodec) base(name, value string) domainauth.CookieDescriptor {
	return domainauth.CookieDescriptor{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		HTTPOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	}
}

// HTTPCookie renders a descriptor as a net/http cookie.
func HTTPCookie(d domainauth.CookieDescriptor) *http.Cookie {
	ck := &http.Cookie{
		Name:     d.Name,
		Value:    d.Value,
		Path:     d.Path,
		Domain:   d.Domain,
		MaxAge:   d.MaxAge,
		Expires:  d.Expires,
		HttpOnly: d.HTTPOnly,
		Secure:   d.Secure,
	}
	switch d.SameSite {
	case domainauth.SameSiteStrict:
		ck.SameSite = http.SameSiteStrictMode
	case domainauth.SameSiteNone:
		ck.SameSite = http.SameSiteNoneMode
	default:
		ck.SameSite = http.SameSiteLaxMode
	}
	return ck
}

// SetCookie writes d as a Set-Cookie header.
func SetCookie(w http.ResponseWriter, d domainauth.CookieDescriptor) {
	http.SetCookie(w, HTTPCookie(d))
}

// cookieValue returns a named cookie's value or "".
func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
