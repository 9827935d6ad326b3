package ports

// Package ports defines interfaces (hexagonal ports) for session and
// credential behavior. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/sessiond/internal/domain/auth"
)

// BeginInput carries inputs for initiating a provider login.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// IdentityProvider initiates and completes an authorization-code flow against an IdP.
type IdentityProvider interface {
	// Name is the stable provider label stored with provider-created accounts.
	Name() string

	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange trades the callback code for a verified identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// CredentialVerifier turns a credential into a Verification. The returned
// error is reserved for infrastructure failures; a refused credential is a
// Rejected result, not an error.
type CredentialVerifier interface {
	Verify(ctx context.Context, cred domainauth.Credential) (domainauth.Verification, error)
}

// SessionStore persists sessions keyed by their bearer token.
type SessionStore interface {
	// Insert stores a new session. It returns domainauth.ErrSessionExists when the id is live.
	Insert(ctx context.Context, sess domainauth.Session) error
	// Get returns domainauth.ErrSessionNotFound for missing or expired sessions.
	Get(ctx context.Context, id string) (domainauth.Session, error)
	// Delete removes the session and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// Extend moves ExpiresAt forward for a live session.
	Extend(ctx context.Context, id string, expiresAt time.Time) (domainauth.Session, error)
	// Sweep reclaims expired records physically present at now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// FlashStore holds one-shot messages between a redirect and the page that renders it.
type FlashStore interface {
	Put(ctx context.Context, key, message string, ttl time.Duration) error
	// Take returns the message and removes it. ok is false when nothing was stored.
	Take(ctx context.Context, key string) (message string, ok bool, err error)
}

// UserRepository persists accounts.
type UserRepository interface {
	// Create returns domainauth.ErrEmailTaken when the email already has an account.
	Create(ctx context.Context, in domainauth.NewUser) (domainauth.User, error)
	// FindByEmail returns domainauth.ErrUserNotFound when no account matches.
	FindByEmail(ctx context.Context, email string) (domainauth.User, error)
	// FindByID returns domainauth.ErrUserNotFound when no account matches.
	FindByID(ctx context.Context, id string) (domainauth.User, error)
	// FindOrCreateByIdentity links a provider identity to an account by email.
	FindOrCreateByIdentity(ctx context.Context, id domainauth.Identity) (domainauth.User, error)
}

// PasswordHasher hashes and compares account secrets.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	// Compare returns domainauth.ErrPasswordMismatch when secret does not match hash.
	Compare(hash, secret string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
