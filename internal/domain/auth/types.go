package auth

// Package auth contains domain-level types for principals, sessions, and
// credential verification. It is pure and free of framework/adapter concerns.

import (
	"errors"
	"time"
)

// Principal is the authenticated identity a session is bound to.
// It never carries secret material.
type Principal struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// User is the persisted account record. PasswordHash is empty for accounts
// created through an identity provider and is never serialized.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Provider     string
	Subject      string
	CreatedAt    time.Time
}

// Principal returns the secret-free view of the user.
func (u User) Principal() Principal {
	p := Principal{ID: u.ID, Name: u.Name, Email: u.Email}
	if u.Provider != "" {
		p.Attributes = map[string]string{"provider": u.Provider}
	}
	return p
}

// NewUser is the input for creating a local-password account.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
}

// Identity represents the principal returned by an external IdP after a
// successful code exchange. Adapters map provider-specific claims into this shape.
type Identity struct {
	Provider      string
	Subject       string // stable provider user identifier (sub)
	Name          string
	Email         string
	EmailVerified bool
}

// SessionMeta is audit information captured at session creation. It is never
// used for authorization decisions.
type SessionMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Session is the server-side record bound to a bearer token.
// The ID is the token itself; stores never persist it in the clear.
type Session struct {
	ID          string      `json:"-"`
	PrincipalID string      `json:"principal_id"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Meta        SessionMeta `json:"meta"`
}

// Expired reports whether the session is logically absent at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

var (
	// ErrSessionNotFound is returned when a session is missing, malformed, or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by stores when an insert collides with a live id.
	ErrSessionExists = errors.New("session id already in use")
	// ErrUserNotFound is returned when no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordMismatch is returned by hashers when a secret does not match its hash.
	ErrPasswordMismatch = errors.New("password mismatch")
)
