package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sessiond/internal/ports"
	"golang.org/x/oauth2"
)

const (
	testClientID = "test-client"
	testRedirect = "http://localhost:3000/auth/google/callback"
)

// fakeIdP serves discovery, JWKS, token, and userinfo endpoints and signs
// ID tokens with a throwaway RSA key.
type fakeIdP struct {
	t        *testing.T
	srv      *httptest.Server
	key      *rsa.PrivateKey
	claims   map[string]any
	userinfo map[string]any
	tokenErr bool
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIdP{t: t, key: key, claims: map[string]any{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, DiscoveryDocument{
			Issuer:                f.srv.URL,
			AuthorizationEndpoint: f.srv.URL + "/auth",
			TokenEndpoint:         f.srv.URL + "/token",
			UserinfoEndpoint:      f.srv.URL + "/userinfo",
			JwksURI:               f.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key: &f.key.PublicKey, KeyID: "k1", Algorithm: string(jose.RS256), Use: "sig",
		}}})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenErr {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		require.NoError(f.t, r.ParseForm())
		writeJSON(w, map[string]any{
			"access_token": "access-" + r.PostForm.Get("code"),
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     f.sign(),
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, f.userinfo)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdP) sign() string {
	payload := map[string]any{
		"iss": f.srv.URL,
		"aud": testClientID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	for k, v := range f.claims {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	require.NoError(f.t, err)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: f.key, KeyID: "k1"}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(f.t, err)
	obj, err := signer.Sign(body)
	require.NoError(f.t, err)
	raw, err := obj.CompactSerialize()
	require.NoError(f.t, err)
	return raw
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestProvider(t *testing.T, idp *fakeIdP) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURL:  testRedirect,
		Issuer:       idp.srv.URL + "/.well-known/openid-configuration",
		HTTPClient:   idp.srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Discovery(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp)

	assert.Equal(t, "google", p.Name())
	assert.Equal(t, idp.srv.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Equal(t, idp.srv.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, []string{"openid", "email", "profile"}, p.config.Scopes)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{"missing client ID", ProviderConfig{ClientSecret: "s", RedirectURL: testRedirect}, "client ID is required"},
		{"missing client secret", ProviderConfig{ClientID: "c", RedirectURL: testRedirect}, "client secret is required"},
		{"missing redirect URL", ProviderConfig{ClientID: "c", ClientSecret: "s"}, "redirect URL is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	p := newTestProvider(t, newFakeIdP(t))

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: testRedirect})
	require.NoError(t, err)
	assert.Len(t, state, randomLength)
	assert.Len(t, nonce, randomLength)
	assert.NotEqual(t, state, nonce)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, testRedirect, q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestProvider_Begin_RedirectMismatch(t *testing.T) {
	p := newTestProvider(t, newFakeIdP(t))
	_, _, _, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "https://evil.example/cb"})
	require.Error(t, err)
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	p := newTestProvider(t, newFakeIdP(t))
	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{"missing code", ports.ExchangeInput{State: "s", Nonce: "n"}, "authorization code is required"},
		{"missing state", ports.ExchangeInput{Code: "c", Nonce: "n"}, "state is required"},
		{"missing nonce", ports.ExchangeInput{Code: "c", State: "s"}, "nonce is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_Success(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = map[string]any{
		"sub":            "1122334455",
		"email":          "grace@example.com",
		"email_verified": true,
		"name":           "Grace Hopper",
		"nonce":          "n-1",
	}
	p := newTestProvider(t, idp)

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "google", id.Provider)
	assert.Equal(t, "1122334455", id.Subject)
	assert.Equal(t, "grace@example.com", id.Email)
	assert.Equal(t, "Grace Hopper", id.Name)
	assert.True(t, id.EmailVerified)
}

func TestProvider_Exchange_NonceMismatch(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = map[string]any{"sub": "1", "email": "g@example.com", "nonce": "other"}
	p := newTestProvider(t, idp)

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid nonce")
}

func TestProvider_Exchange_FillsFromUserInfo(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = map[string]any{"sub": "1", "nonce": "n"}
	idp.userinfo = map[string]any{
		"sub":            "1",
		"email":          "ui@example.com",
		"email_verified": true,
		"given_name":     "Ui",
		"family_name":    "User",
	}
	p := newTestProvider(t, idp)

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, "ui@example.com", id.Email)
	assert.Equal(t, "Ui User", id.Name)
}

func TestProvider_Exchange_TokenEndpointError(t *testing.T) {
	idp := newFakeIdP(t)
	idp.tokenErr = true
	p := newTestProvider(t, idp)

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code for token")
}

func TestClaims_UnverifiedEmailDropped(t *testing.T) {
	no := false
	id := claims{Sub: "1", Email: "x@example.com", EmailVerified: &no}.identity("google")
	assert.Empty(t, id.Email)
	assert.False(t, id.EmailVerified)

	id = claims{Sub: "1", Email: "x@example.com"}.identity("google")
	assert.Equal(t, "x@example.com", id.Email)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	raw, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", raw)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	require.ErrorContains(t, err, "missing id_token")

	_, err = getIDTokenFromToken(nil)
	require.ErrorContains(t, err, "nil token")
}

func TestRandomToken(t *testing.T) {
	a, err := randomToken(16)
	require.NoError(t, err)
	assert.Len(t, a, 16)
	b, err := randomToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
