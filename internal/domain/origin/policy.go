// Package origin decides which browser origins may make credentialed
// requests against the API.
package origin

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// Decision is the outcome of evaluating a request's Origin header.
type Decision struct {
	// Allowed is false only when an Origin header is present and not listed.
	Allowed bool
	// Reflect is the exact origin to echo in Access-Control-Allow-Origin.
	// Empty when the request carried no Origin or was denied.
	Reflect string
}

// Credentialed reports whether CORS credential headers should be emitted.
func (d Decision) Credentialed() bool {
	return d.Allowed && d.Reflect != ""
}

// Policy is an immutable allow-list of exact origins. Wildcards are never honored.
type Policy struct {
	allowed map[string]struct{}
}

// ErrWildcard is returned when an allow-list entry contains "*".
var ErrWildcard = errors.New("wildcard origins cannot be used with credentials")

// NewPolicy builds a policy from configured origins. Entries are normalized so
// comparison ignores case and default ports.
func NewPolicy(origins []string) (*Policy, error) {
	p := &Policy{allowed: make(map[string]struct{}, len(origins))}
	for _, raw := range origins {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "*") {
			return nil, fmt.Errorf("%w: %q", ErrWildcard, raw)
		}
		n, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		p.allowed[n] = struct{}{}
	}
	return p, nil
}

// Evaluate classifies an Origin header value.
func (p *Policy) Evaluate(origin string) Decision {
	if origin == "" {
		return Decision{Allowed: true}
	}
	if p.Allows(origin) {
		return Decision{Allowed: true, Reflect: origin}
	}
	return Decision{}
}

// Allows reports whether origin is on the allow-list.
func (p *Policy) Allows(origin string) bool {
	if p == nil {
		return false
	}
	n, err := Normalize(origin)
	if err != nil {
		return false
	}
	_, ok := p.allowed[n]
	return ok
}

// Origins returns the normalized allow-list in sorted order.
func (p *Policy) Origins() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.allowed))
	for o := range p.allowed {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Normalize renders an origin as scheme://host[:port] with a lowercase scheme
// and host, dropping the port when it is the scheme default. Paths, queries,
// fragments, and user info are rejected; "null" is never a valid origin.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("origin %q must use http or https", raw)
	}
	if u.Host == "" || u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("origin %q must be scheme://host[:port]", raw)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port), nil
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host, nil
}
