package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	apperrors "github.com/target/sessiond/internal/errors"
	"github.com/target/sessiond/internal/observability/metrics"
	"github.com/target/sessiond/internal/observability/statsd"
	"github.com/target/sessiond/internal/ports"
)

const (
	// DefaultFailureMessage is shown when a provider failure left no message behind.
	DefaultFailureMessage = "try_again_with_other_way"
	// DefaultFlashTTL bounds how long a failure message waits for /auth/error.
	DefaultFlashTTL = 5 * time.Minute
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Sessions *SessionService
	Users    ports.UserRepository
	Hasher   ports.PasswordHasher
	// Provider and ProviderVerifier are nil when provider login is disabled.
	Provider         ports.IdentityProvider
	ProviderVerifier ports.CredentialVerifier
	Flash            ports.FlashStore
	FlashTTL         time.Duration
	// SlidingSessions extends the session on every successful Resolve.
	SlidingSessions bool
	Random          io.Reader
	Metrics         statsd.Sink // Optional
	Logger          *slog.Logger
}

// AuthService orchestrates registration, session establishment, provider
// login, and logout. It consumes Verification results and never inspects
// which verifier produced them.
type AuthService struct {
	sessions         *SessionService
	users            ports.UserRepository
	hasher           ports.PasswordHasher
	provider         ports.IdentityProvider
	providerVerifier ports.CredentialVerifier
	flash            ports.FlashStore
	flashTTL         time.Duration
	sliding          bool
	random           io.Reader
	metrics          statsd.Sink
	logger           *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionService is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("PasswordHasher is required")
	}
	if opts.Flash == nil {
		return nil, errors.New("FlashStore is required")
	}
	if (opts.Provider == nil) != (opts.ProviderVerifier == nil) {
		return nil, errors.New("provider and provider verifier must be configured together")
	}
	flashTTL := opts.FlashTTL
	if flashTTL <= 0 {
		flashTTL = DefaultFlashTTL
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		sessions:         opts.Sessions,
		users:            opts.Users,
		hasher:           opts.Hasher,
		provider:         opts.Provider,
		providerVerifier: opts.ProviderVerifier,
		flash:            opts.Flash,
		flashTTL:         flashTTL,
		sliding:          opts.SlidingSessions,
		random:           random,
		metrics:          opts.Metrics,
		logger:           logger.With("component", "auth_service"),
	}, nil
}

// Sessions exposes the underlying session service.
func (s *AuthService) Sessions() *SessionService { return s.sessions }

// SlidingSessions reports whether Resolve extends session expiry.
func (s *AuthService) SlidingSessions() bool { return s.sliding }

// ProviderEnabled reports whether provider login is configured.
func (s *AuthService) ProviderEnabled() bool { return s.provider != nil }

// RegisterInput is the registration payload after transport decoding.
type RegisterInput struct {
	Name   string
	Email  string
	Secret string
}

// Register creates a local-password account. It never creates a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ domainauth.Principal, err error) {
	defer func() { s.emit("register", "password", err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Secret == "" {
		return domainauth.Principal{}, apperrors.Validation("All fields required")
	}

	hash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return domainauth.Principal{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "could not register user")
	}

	user, createErr := s.users.Create(ctx, domainauth.NewUser{Name: in.Name, Email: in.Email, PasswordHash: hash})
	if errors.Is(createErr, domainauth.ErrEmailTaken) {
		return domainauth.Principal{}, &apperrors.AppError{
			Code:    apperrors.ErrCodeConflict,
			Message: "User already exists",
			Field:   "email",
			Cause:   createErr,
		}
	}
	if createErr != nil {
		return domainauth.Principal{}, storageErr(fmt.Errorf("create user: %w", createErr))
	}

	s.logger.InfoContext(ctx, "user registered", "principal_id", user.ID)
	return user.Principal(), nil
}

// Establish creates a session for a verified principal.
func (s *AuthService) Establish(ctx context.Context, p domainauth.Principal, meta domainauth.SessionMeta) (domainauth.Session, error) {
	sess, err := s.sessions.Create(ctx, p.ID, meta)
	if err != nil {
		return domainauth.Session{}, err
	}
	s.logger.InfoContext(ctx, "session established",
		"principal_id", p.ID, "session", Fingerprint(sess.ID), "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Login turns a Verification into a session. Rejected results become
// Unauthorized errors and no session is created.
func (s *AuthService) Login(ctx context.Context, v domainauth.Verification, meta domainauth.SessionMeta) (domainauth.Principal, domainauth.Session, error) {
	switch v := v.(type) {
	case domainauth.Verified:
		sess, err := s.Establish(ctx, v.Principal, meta)
		s.emit("login", "", err)
		if err != nil {
			return domainauth.Principal{}, domainauth.Session{}, err
		}
		return v.Principal, sess, nil
	case domainauth.Rejected:
		s.logger.InfoContext(ctx, "credential rejected", "reason", v.Reason)
		metrics.EmitAuth(s.metrics, metrics.AuthMetric{Operation: "login", Result: metrics.ResultRejected, Reason: string(v.Reason)})
		return domainauth.Principal{}, domainauth.Session{}, &apperrors.AppError{
			Code:    apperrors.ErrCodeUnauthorized,
			Message: "Unauthorized Attempt",
			Cause:   fmt.Errorf("credential rejected: %s", v.Reason),
		}
	default:
		return domainauth.Principal{}, domainauth.Session{}, apperrors.Internal("credential was not verified")
	}
}

// BeginLoginResult contains the result of beginning a provider login.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginProviderLogin starts the provider flow and returns the redirect target
// with the state and nonce the caller must bind to the browser.
func (s *AuthService) BeginProviderLogin(ctx context.Context, redirectURL string) (BeginLoginResult, error) {
	if s.provider == nil {
		return BeginLoginResult{}, apperrors.NotFound("provider login is not configured")
	}
	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return BeginLoginResult{}, apperrors.Provider(fmt.Errorf("begin auth flow: %w", err))
	}
	return BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// VerifyProvider runs the provider verifier over a callback artifact.
func (s *AuthService) VerifyProvider(ctx context.Context, cred domainauth.ProviderCredential) (domainauth.Verification, error) {
	if s.providerVerifier == nil {
		return nil, apperrors.NotFound("provider login is not configured")
	}
	return s.providerVerifier.Verify(ctx, cred)
}

// RecordFailure stores a one-shot failure message and returns the key the
// browser must present to read it back.
func (s *AuthService) RecordFailure(ctx context.Context, message string) (string, error) {
	key, err := NewSessionID(s.random)
	if err != nil {
		return "", apperrors.Internalf("generate flash key: %v", err)
	}
	if err := s.flash.Put(ctx, key, message, s.flashTTL); err != nil {
		return "", apperrors.Storage(fmt.Errorf("put flash: %w", err))
	}
	return key, nil
}

// TakeFailure reads and clears the failure message for key. A missing or
// already-consumed message yields DefaultFailureMessage.
func (s *AuthService) TakeFailure(ctx context.Context, key string) string {
	if key == "" {
		return DefaultFailureMessage
	}
	msg, ok, err := s.flash.Take(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read flash message", "error", err)
		return DefaultFailureMessage
	}
	if !ok || msg == "" {
		return DefaultFailureMessage
	}
	return msg
}

// Resolve maps a session id to its live session and principal. Sessions whose
// account disappeared are revoked.
func (s *AuthService) Resolve(ctx context.Context, sessionID string) (domainauth.Principal, domainauth.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domainauth.Principal{}, domainauth.Session{}, err
	}

	user, err := s.users.FindByID(ctx, sess.PrincipalID)
	if errors.Is(err, domainauth.ErrUserNotFound) {
		if _, delErr := s.sessions.Destroy(ctx, sessionID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to revoke orphaned session", "error", delErr)
		}
		return domainauth.Principal{}, domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	if err != nil {
		return domainauth.Principal{}, domainauth.Session{}, storageErr(fmt.Errorf("find principal: %w", err))
	}

	if s.sliding {
		if touched, touchErr := s.sessions.Touch(ctx, sessionID); touchErr == nil {
			sess = touched
		} else {
			s.logger.WarnContext(ctx, "failed to extend session", "error", touchErr)
		}
	}
	return user.Principal(), sess, nil
}

// Logout destroys the session bound to sessionID.
func (s *AuthService) Logout(ctx context.Context, sessionID string) (DestroyResult, error) {
	res, err := s.sessions.Destroy(ctx, sessionID)
	s.emit("logout", "", err)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "logout", "session", Fingerprint(sessionID), "result", res.String())
	return res, nil
}

func (s *AuthService) emit(op, method string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitAuth(s.metrics, metrics.AuthMetric{Operation: op, Method: method, Result: result, Err: err})
}
