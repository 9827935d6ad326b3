package devauth

// Package devauth provides a config-driven IdentityProvider for local
// development and end-to-end tests without a real IdP.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/ports"
)

// Code is the only authorization code Exchange accepts.
const Code = "dev"

// ErrInvalidCode is returned by Exchange for any code other than Code.
var ErrInvalidCode = errors.New("dev auth: invalid_grant")

// Config controls the dev auth provider behavior.
type Config struct {
	// Name defaults to "dev".
	Name    string
	Subject string
	Email   string
	// DisplayName defaults to the local part of Email.
	DisplayName string
}

// Provider short-circuits the OAuth flow by redirecting straight back to the
// callback with a locally generated state. Exchange returns the configured identity.
type Provider struct {
	name     string
	identity domainauth.Identity
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	name := cfg.Name
	if name == "" {
		name = "dev"
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "dev-" + cfg.Email
	}
	return &Provider{
		name: name,
		identity: domainauth.Identity{
			Provider:      name,
			Subject:       subject,
			Name:          cfg.DisplayName,
			Email:         cfg.Email,
			EmailVerified: true,
		},
	}, nil
}

func (p *Provider) Name() string { return p.name }

// Begin returns the callback URL itself carrying Code and a fresh state.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}
	u, err := url.Parse(in.RedirectURL)
	if err != nil {
		return "", "", "", fmt.Errorf("parse redirect URL: %w", err)
	}
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	q := u.Query()
	q.Set("code", Code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), state, nonce, nil
}

// Exchange returns the configured identity for Code and ErrInvalidCode otherwise.
// State validation is the caller's job.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code != Code {
		return domainauth.Identity{}, ErrInvalidCode
	}
	return p.identity, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
