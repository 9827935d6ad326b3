package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/sessiond/internal/adapters/memstore"
	"github.com/target/sessiond/internal/data"
	"github.com/target/sessiond/internal/domain/origin"
	authmocks "github.com/target/sessiond/internal/mocks/auth"
	"github.com/target/sessiond/internal/ports"
	"github.com/target/sessiond/internal/service"
)

const (
	testClientURL = "https://app.example.com"
	testCallback  = "https://api.example.com/auth/google/callback"
)

type fixtureOptions struct {
	store      ports.SessionStore
	sameSite   bool
	sliding    bool
	noProvider bool
	logger     *slog.Logger
}

type apiFixture struct {
	handler  http.Handler
	svc      *service.AuthService
	sessions *service.SessionService
	users    *authmocks.MemoryUserRepo
	provider *authmocks.FakeIdentityProvider
	clock    *data.FixedTimeProvider
	cookies  *SessionCookieCodec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPIFixture(t *testing.T, opts fixtureOptions) apiFixture {
	t.Helper()
	clock := data.NewFixedTimeProvider(testEpoch)
	store := opts.store
	if store == nil {
		store = memstore.NewSessionStore(clock)
	}
	sessions, err := service.NewSessionService(service.SessionServiceOptions{Store: store, Clock: clock})
	require.NoError(t, err)

	logger := opts.logger
	if logger == nil {
		logger = discardLogger()
	}
	users := authmocks.NewMemoryUserRepo()
	provider := authmocks.NewFakeIdentityProvider()
	svcOpts := service.AuthServiceOptions{
		Sessions:        sessions,
		Users:           users,
		Hasher:          authmocks.PlainHasher{},
		Flash:           memstore.NewFlashStore(clock),
		SlidingSessions: opts.sliding,
		Logger:          discardLogger(),
	}
	if !opts.noProvider {
		pv, pvErr := service.NewProviderVerifier(service.ProviderVerifierOptions{Provider: provider, Users: users})
		require.NoError(t, pvErr)
		svcOpts.Provider = provider
		svcOpts.ProviderVerifier = pv
	}
	svc, err := service.NewAuthService(svcOpts)
	require.NoError(t, err)

	pwv, err := service.NewPasswordVerifier(service.PasswordVerifierOptions{Users: users, Hasher: authmocks.PlainHasher{}})
	require.NoError(t, err)

	cookies, err := NewSessionCookieCodec(CookiePolicy{
		TTL:         service.DefaultSessionTTL,
		CrossOrigin: !opts.sameSite,
		Secure:      true,
	})
	require.NoError(t, err)

	policy, err := origin.NewPolicy([]string{testClientURL})
	require.NoError(t, err)

	h, err := NewRouter(RouterServices{
		Auth:                svc,
		PasswordVerifier:    pwv,
		Cookies:             cookies,
		Origins:             policy,
		ClientBaseURL:       testClientURL,
		ProviderRedirectURL: testCallback,
		Readiness: map[string]ReadinessProbe{
			"sessions": func(context.Context) error { return nil },
		},
		Logger: logger,
	})
	require.NoError(t, err)

	return apiFixture{
		handler:  h,
		svc:      svc,
		sessions: sessions,
		users:    users,
		provider: provider,
		clock:    clock,
		cookies:  cookies,
	}
}

func (f apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f apiFixture) register(t *testing.T, name, email, secret string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), service.RegisterInput{Name: name, Email: email, Secret: secret})
	require.NoError(t, err)
}

// login performs a password login and returns the session cookie.
func (f apiFixture) login(t *testing.T, email, secret string) *http.Cookie {
	t.Helper()
	rec := f.do(jsonRequest(http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+secret+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ck := cookieNamed(rec, DefaultCookieName)
	require.NotNil(t, ck)
	return ck
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
