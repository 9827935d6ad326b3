package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	apperrors "github.com/target/sessiond/internal/errors"
	"github.com/target/sessiond/internal/ports"
)

// DefaultProviderTimeout bounds a single code exchange against the IdP.
const DefaultProviderTimeout = 10 * time.Second

var errUnsupportedCredential = errors.New("unsupported credential type")

// PasswordVerifierOptions groups dependencies for PasswordVerifier.
type PasswordVerifierOptions struct {
	Users  ports.UserRepository
	Hasher ports.PasswordHasher
	// DummyHash is compared against when the email is unknown so both
	// rejection paths cost one hash comparison.
	DummyHash string
}

// PasswordVerifier checks email/secret pairs against stored hashes.
type PasswordVerifier struct {
	users     ports.UserRepository
	hasher    ports.PasswordHasher
	dummyHash string
}

// NewPasswordVerifier constructs a PasswordVerifier.
func NewPasswordVerifier(opts PasswordVerifierOptions) (*PasswordVerifier, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("PasswordHasher is required")
	}
	return &PasswordVerifier{users: opts.Users, hasher: opts.Hasher, dummyHash: opts.DummyHash}, nil
}

// Verify never distinguishes an unknown email from a wrong secret.
func (v *PasswordVerifier) Verify(ctx context.Context, cred domainauth.Credential) (domainauth.Verification, error) {
	pc, ok := cred.(domainauth.PasswordCredential)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnsupportedCredential, cred)
	}
	rejected := domainauth.Rejected{Reason: domainauth.ReasonInvalidCredentials}
	if pc.Email == "" || pc.Secret == "" {
		return rejected, nil
	}

	user, err := v.users.FindByEmail(ctx, pc.Email)
	if errors.Is(err, domainauth.ErrUserNotFound) {
		if v.dummyHash != "" {
			_ = v.hasher.Compare(v.dummyHash, pc.Secret)
		}
		return rejected, nil
	}
	if err != nil {
		return nil, storageErr(fmt.Errorf("find user: %w", err))
	}
	if user.PasswordHash == "" {
		// provider-only account
		return rejected, nil
	}

	switch err := v.hasher.Compare(user.PasswordHash, pc.Secret); {
	case err == nil:
		return domainauth.Verified{Principal: user.Principal()}, nil
	case errors.Is(err, domainauth.ErrPasswordMismatch):
		return rejected, nil
	default:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "password comparison failed")
	}
}

// ProviderVerifierOptions groups dependencies for ProviderVerifier.
type ProviderVerifierOptions struct {
	Provider ports.IdentityProvider
	Users    ports.UserRepository
	// Timeout defaults to DefaultProviderTimeout.
	Timeout time.Duration
}

// ProviderVerifier completes an authorization-code exchange and links the
// resulting identity to an account.
type ProviderVerifier struct {
	provider ports.IdentityProvider
	users    ports.UserRepository
	timeout  time.Duration
}

// NewProviderVerifier constructs a ProviderVerifier.
func NewProviderVerifier(opts ProviderVerifierOptions) (*ProviderVerifier, error) {
	if opts.Provider == nil {
		return nil, errors.New("IdentityProvider is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &ProviderVerifier{provider: opts.Provider, users: opts.Users, timeout: timeout}, nil
}

// Verify rejects mismatched state before contacting the provider. A provider
// that refuses the code yields Rejected; one that cannot be reached in time
// yields a provider failure error.
func (v *ProviderVerifier) Verify(ctx context.Context, cred domainauth.Credential) (domainauth.Verification, error) {
	pc, ok := cred.(domainauth.ProviderCredential)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnsupportedCredential, cred)
	}
	rejected := domainauth.Rejected{Reason: domainauth.ReasonProviderRejected}
	if pc.Code == "" || pc.State == "" || pc.ExpectedState == "" ||
		subtle.ConstantTimeCompare([]byte(pc.State), []byte(pc.ExpectedState)) != 1 {
		return rejected, nil
	}

	exCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	identity, err := v.provider.Exchange(exCtx, ports.ExchangeInput{Code: pc.Code, State: pc.State, Nonce: pc.Nonce})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperrors.Provider(fmt.Errorf("exchange code: %w", err))
		}
		return rejected, nil
	}
	if identity.Email == "" {
		return domainauth.Rejected{Reason: domainauth.ReasonNoEmail}, nil
	}
	// Accounts are linked by email, so an unverified address never reaches the repository.
	if !identity.EmailVerified {
		return domainauth.Rejected{Reason: domainauth.ReasonEmailUnverified}, nil
	}
	if identity.Provider == "" {
		identity.Provider = v.provider.Name()
	}

	user, err := v.users.FindOrCreateByIdentity(ctx, identity)
	if err != nil {
		return nil, storageErr(fmt.Errorf("link identity: %w", err))
	}
	return domainauth.Verified{Principal: user.Principal()}, nil
}

// storageErr keeps an existing AppError classification and treats anything
// else from a repository as a storage failure.
func storageErr(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Storage(err)
}
