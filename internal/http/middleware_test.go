package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/domain/origin"
	apperrors "github.com/target/sessiond/internal/errors"
	"github.com/target/sessiond/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "internal", body["error"])
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLogging_PassesThroughStatus(t *testing.T) {
	h := Logging(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestOriginGate(t *testing.T) {
	policy, err := origin.NewPolicy([]string{testClientURL})
	require.NoError(t, err)

	var got origin.Decision
	h := OriginGate(policy, discardLogger())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = OriginDecisionFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		origin string
		want   origin.Decision
	}{
		{"absent", "", origin.Decision{Allowed: true}},
		{"listed", testClientURL, origin.Decision{Allowed: true, Reflect: testClientURL}},
		{"unlisted", "https://evil.example", origin.Decision{}},
		{"null", "null", origin.Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginDecisionFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	d := OriginDecisionFromContext(req.Context())
	assert.True(t, d.Allowed)
	assert.False(t, d.Credentialed())
}

func TestVerifyPassword_AttachesVerification(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockCredentialVerifier(ctrl)
	verifier.EXPECT().
		Verify(gomock.Any(), domainauth.PasswordCredential{Email: "a@x.com", Secret: "p1"}).
		Return(domainauth.Rejected{Reason: domainauth.ReasonInvalidCredentials}, nil)

	var got domainauth.Verification
	h := VerifyPassword(VerifyPasswordOptions{Verifier: verifier, Logger: discardLogger()})(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got, _ = VerificationFromContext(r.Context())
		}))
	h.ServeHTTP(httptest.NewRecorder(), jsonRequest(http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"p1"}`))

	assert.Equal(t, domainauth.Rejected{Reason: domainauth.ReasonInvalidCredentials}, got)
}

func TestVerifyPassword_InfrastructureFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockCredentialVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.Storage(errors.New("dial tcp: refused")))

	called := false
	h := VerifyPassword(VerifyPasswordOptions{Verifier: verifier, Logger: discardLogger()})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"p1"}`))

	assert.False(t, called)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "storage_failure", decodeBody(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestVerifyPassword_MalformedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockCredentialVerifier(ctrl)

	var got domainauth.Verification
	h := VerifyPassword(VerifyPasswordOptions{Verifier: verifier, MaxBodyBytes: 16})(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got, _ = VerificationFromContext(r.Context())
		}))

	for _, body := range []string{`not json`, ``, `{"email":"` + strings.Repeat("a", 32) + `"}`} {
		got = nil
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/auth/login", body))
		assert.Equal(t, domainauth.Rejected{Reason: domainauth.ReasonInvalidCredentials}, got, body)
	}
}

func TestRequireAllowedOrigin(t *testing.T) {
	h := RequireAllowedOrigin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req = req.WithContext(SetOriginDecision(req.Context(), origin.Decision{}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden_origin", decodeBody(t, rec)["error"])

	req = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionMeta(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", strings.Repeat("u", 400))
	meta := sessionMeta(req)
	assert.Equal(t, "203.0.113.7", meta.IP)
	assert.Len(t, meta.UserAgent, maxUserAgentLen)
}
