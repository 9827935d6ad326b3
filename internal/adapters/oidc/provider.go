package oidc

// Package oidc provides the OpenID Connect identity provider used for
// "Sign in with Google" and any other discovery-capable IdP.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/ports"
	"golang.org/x/oauth2"
)

const (
	// GoogleIssuer is the issuer used when none is configured.
	GoogleIssuer = "https://accounts.google.com"

	defaultName  = "google"
	randomLength = 32
)

// Provider implements ports.IdentityProvider using OIDC discovery and the
// authorization-code flow.
type Provider struct {
	name       string
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	// Name is the label stored on provider-created accounts. Defaults to "google".
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Issuer may be the issuer URL or its .well-known/openid-configuration URL.
	Issuer     string
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider performs discovery against the issuer and returns a ready provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	name := config.Name
	if name == "" {
		name = defaultName
	}
	issuer := config.Issuer
	if issuer == "" {
		issuer = GoogleIssuer
	}
	issuer = strings.TrimSuffix(issuer, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}

	return &Provider{
		name:       name,
		httpClient: httpClient,
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
	}, nil
}

// Name returns the provider label.
func (p *Provider) Name() string { return p.name }

// Begin builds the authorization URL. The redirect URL is fixed at
// construction; a differing request value is refused so the exchange's
// redirect_uri always matches.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL != "" && in.RedirectURL != p.config.RedirectURL {
		return "", "", "", fmt.Errorf("redirect URL %q does not match configured %q", in.RedirectURL, p.config.RedirectURL)
	}

	state, err := randomToken(randomLength)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken(randomLength)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state,
		gooidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// Exchange trades the code for tokens, verifies the ID token and nonce, and
// maps standard claims to an Identity. Missing claims are filled from UserInfo.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	c, err := p.verifyIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if c.Email == "" || c.Sub == "" {
		ui, uiErr := p.userInfo(ctx, token)
		if uiErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", uiErr)
		}
		c.fillFrom(ui)
	}
	return c.identity(p.name), nil
}

// claims is the subset of standard OIDC claims the service consumes.
type claims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Nonce         string `json:"nonce"`
}

func (c *claims) fillFrom(ui claims) {
	if c.Sub == "" {
		c.Sub = ui.Sub
	}
	if c.Email == "" {
		c.Email = ui.Email
		c.EmailVerified = ui.EmailVerified
	}
	if c.Name == "" {
		c.Name = ui.Name
	}
	if c.GivenName == "" {
		c.GivenName = ui.GivenName
	}
	if c.FamilyName == "" {
		c.FamilyName = ui.FamilyName
	}
}

// identity maps claims to an Identity. An email the IdP explicitly marks
// unverified is dropped so it can never link to an existing account.
func (c claims) identity(provider string) domainauth.Identity {
	verified := c.EmailVerified == nil || *c.EmailVerified
	email := c.Email
	if !verified {
		email = ""
	}
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	return domainauth.Identity{
		Provider:      provider,
		Subject:       c.Sub,
		Name:          name,
		Email:         email,
		EmailVerified: verified && email != "",
	}
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (claims, error) {
	var c claims
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return c, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return c, fmt.Errorf("verify id_token: %w", err)
	}
	if err := idTok.Claims(&c); err != nil {
		return c, fmt.Errorf("parse id_token claims: %w", err)
	}
	if c.Nonce != expectedNonce {
		return c, errors.New("invalid nonce")
	}
	return c, nil
}

func (p *Provider) userInfo(ctx context.Context, tok *oauth2.Token) (claims, error) {
	var c claims
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return c, fmt.Errorf("fetch user info: %w", err)
	}
	if err := ui.Claims(&c); err != nil {
		return c, fmt.Errorf("decode user info: %w", err)
	}
	return c, nil
}

// randomToken returns a URL-safe random string of exactly n characters.
func randomToken(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
