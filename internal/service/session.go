package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/target/sessiond/internal/data"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	apperrors "github.com/target/sessiond/internal/errors"
	"github.com/target/sessiond/internal/ports"
)

const (
	// DefaultSessionTTL is the session lifetime when none is configured (14 days).
	DefaultSessionTTL = 14 * 24 * time.Hour

	sessionIDBytes = 32
	// SessionIDLength is the encoded length of a session id (base64url, no padding).
	SessionIDLength = 43

	insertAttempts = 2
)

// DestroyResult reports what Destroy found.
type DestroyResult int

const (
	// Destroyed means a live session was removed.
	Destroyed DestroyResult = iota + 1
	// AlreadyAbsent means no live session existed for the id.
	AlreadyAbsent
)

func (r DestroyResult) String() string {
	switch r {
	case Destroyed:
		return "destroyed"
	case AlreadyAbsent:
		return "already_absent"
	default:
		return "unknown"
	}
}

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Store ports.SessionStore
	// TTL defaults to DefaultSessionTTL.
	TTL time.Duration
	// Clock defaults to wall time.
	Clock ports.Clock
	// Random defaults to crypto/rand.Reader.
	Random io.Reader
	Logger *slog.Logger
}

// SessionService issues, resolves, and revokes bearer sessions.
type SessionService struct {
	store  ports.SessionStore
	ttl    time.Duration
	clock  ports.Clock
	random io.Reader
	logger *slog.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	if ttl < 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		store:  opts.Store,
		ttl:    ttl,
		clock:  clock,
		random: random,
		logger: logger.With("component", "session_service"),
	}, nil
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Create issues a new session for principalID. A colliding id is retried once
// with fresh randomness.
func (s *SessionService) Create(ctx context.Context, principalID string, meta domainauth.SessionMeta) (domainauth.Session, error) {
	if principalID == "" {
		return domainauth.Session{}, apperrors.Validation("principal id is required")
	}

	for attempt := 1; ; attempt++ {
		id, err := NewSessionID(s.random)
		if err != nil {
			return domainauth.Session{}, apperrors.Internalf("generate session id: %v", err)
		}
		now := s.clock.Now()
		sess := domainauth.Session{
			ID:          id,
			PrincipalID: principalID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
			Meta:        meta,
		}

		err = s.store.Insert(ctx, sess)
		switch {
		case err == nil:
			return sess, nil
		case errors.Is(err, domainauth.ErrSessionExists) && attempt < insertAttempts:
			s.logger.WarnContext(ctx, "session id collision, retrying")
		default:
			return domainauth.Session{}, apperrors.Storage(fmt.Errorf("insert session: %w", err))
		}
	}
}

// Get resolves a live session. Missing, malformed, and expired ids all yield
// domainauth.ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if !ValidSessionID(id) {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return domainauth.Session{}, domainauth.ErrSessionNotFound
		}
		return domainauth.Session{}, apperrors.Storage(fmt.Errorf("get session: %w", err))
	}
	if sess.Expired(s.clock.Now()) {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

// Destroy revokes the session. Absent ids are not an error.
func (s *SessionService) Destroy(ctx context.Context, id string) (DestroyResult, error) {
	if !ValidSessionID(id) {
		return AlreadyAbsent, nil
	}
	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, apperrors.Storage(fmt.Errorf("delete session: %w", err))
	}
	if !existed {
		return AlreadyAbsent, nil
	}
	return Destroyed, nil
}

// Touch slides the expiry to now+TTL.
func (s *SessionService) Touch(ctx context.Context, id string) (domainauth.Session, error) {
	if !ValidSessionID(id) {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	sess, err := s.store.Extend(ctx, id, s.clock.Now().Add(s.ttl))
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return domainauth.Session{}, domainauth.ErrSessionNotFound
		}
		return domainauth.Session{}, apperrors.Storage(fmt.Errorf("extend session: %w", err))
	}
	return sess, nil
}

// Sweep reclaims expired records in backends that do not expire keys natively.
func (s *SessionService) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.Sweep(ctx, s.clock.Now())
	if err != nil {
		return 0, apperrors.Storage(fmt.Errorf("sweep sessions: %w", err))
	}
	return n, nil
}

// NewSessionID returns 256 bits from r encoded as unpadded base64url.
func NewSessionID(r io.Reader) (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidSessionID reports whether id has the exact shape NewSessionID produces.
func ValidSessionID(id string) bool {
	if len(id) != SessionIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Fingerprint is a short, non-reversible label for a session id, safe to log.
func Fingerprint(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:4])
}
