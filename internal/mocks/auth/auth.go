package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*FakeIdentityProvider)(nil)
	_ ports.UserRepository   = (*MemoryUserRepo)(nil)
	_ ports.PasswordHasher   = PlainHasher{}
)

// FakeIdentityProvider simulates an IdP for tests with deterministic state/nonce handling.
type FakeIdentityProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	ProviderName string
	AuthURL      string
	StatePrefix  string
	NoncePrefix  string
	// ValidCode is the only code Exchange accepts when ExchangeFunc is nil.
	ValidCode   string
	DefaultUser domainauth.Identity

	mu        sync.Mutex
	callCount int
}

// NewFakeIdentityProvider creates a FakeIdentityProvider with sensible defaults.
func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		ProviderName: "fake",
		AuthURL:      "https://fake-idp/auth",
		StatePrefix:  "state",
		NoncePrefix:  "nonce",
		ValidCode:    "good-code",
		DefaultUser: domainauth.Identity{
			Subject:       "fake-user-1",
			Name:          "Fake User",
			Email:         "fake.user@example.com",
			EmailVerified: true,
		},
	}
}

func (f *FakeIdentityProvider) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

func (f *FakeIdentityProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx, in)
	}

	f.mu.Lock()
	f.callCount++
	n := f.callCount
	f.mu.Unlock()

	authURL := f.AuthURL
	if authURL == "" {
		authURL = "https://fake-idp/auth"
	}
	statePrefix := f.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := f.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}
	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

// ErrCodeRejected is returned by Exchange for any code other than ValidCode.
var ErrCodeRejected = errors.New("fake idp: invalid_grant")

func (f *FakeIdentityProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if f.ExchangeFunc != nil {
		return f.ExchangeFunc(ctx, in)
	}
	if f.ValidCode != "" && in.Code != f.ValidCode {
		return domainauth.Identity{}, ErrCodeRejected
	}
	id := f.DefaultUser
	if id.Provider == "" {
		id.Provider = f.Name()
	}
	return id, nil
}

// MemoryUserRepo is an in-memory account store for unit tests.
type MemoryUserRepo struct {
	mu      sync.Mutex
	byID    map[string]domainauth.User
	byEmail map[string]string
	seq     int

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewMemoryUserRepo creates an empty MemoryUserRepo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]domainauth.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUserRepo) Create(_ context.Context, in domainauth.NewUser) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(domainauth.User{Name: in.Name, Email: in.Email, PasswordHash: in.PasswordHash})
}

func (m *MemoryUserRepo) FindByEmail(_ context.Context, email string) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domainauth.User{}, domainauth.ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryUserRepo) FindByID(_ context.Context, id string) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domainauth.User{}, domainauth.ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUserRepo) FindOrCreateByIdentity(_ context.Context, ident domainauth.Identity) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(ident.Email))
	if email == "" {
		return domainauth.User{}, errors.New("identity has no email")
	}
	if id, ok := m.byEmail[email]; ok {
		return m.byID[id], nil
	}
	name := ident.Name
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return m.insertLocked(domainauth.User{Name: name, Email: email, Provider: ident.Provider, Subject: ident.Subject})
}

// Remove deletes an account, simulating an account closed mid-session.
func (m *MemoryUserRepo) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		delete(m.byEmail, u.Email)
		delete(m.byID, id)
	}
}

// Len returns the number of stored accounts.
func (m *MemoryUserRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *MemoryUserRepo) insertLocked(u domainauth.User) (domainauth.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := m.byEmail[u.Email]; ok {
		return domainauth.User{}, domainauth.ErrEmailTaken
	}
	m.seq++
	u.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
	if m.Now != nil {
		u.CreatedAt = m.Now()
	} else {
		u.CreatedAt = time.Now().UTC()
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return u, nil
}

// PlainHasher stores secrets with a fixed prefix. Never use outside tests.
type PlainHasher struct{}

const plainPrefix = "plain$"

func (PlainHasher) Hash(secret string) (string, error) {
	return plainPrefix + secret, nil
}

func (PlainHasher) Compare(hash, secret string) error {
	if hash != plainPrefix+secret {
		return domainauth.ErrPasswordMismatch
	}
	return nil
}
