package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sessiond/config"
	httpx "github.com/target/sessiond/internal/http"
	"golang.org/x/crypto/bcrypt"
)

func buildTestAuth(t *testing.T, cfg *config.AppConfig) *AuthComponents {
	t.Helper()
	c, err := BuildAuth(context.Background(), AuthDeps{
		Config:     cfg,
		DB:         newMockDB(t),
		BcryptCost: bcrypt.MinCost,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPServer(t *testing.T) {
	cfg := testAppConfig(config.SessionBackendMemory, config.ProviderModeNone)
	cfg.HTTP.Addr = ""
	cfg.HTTP.ReadTimeout = 7 * time.Second

	srv, err := NewHTTPServer(HTTPServerConfig{
		Config: cfg,
		Auth:   buildTestAuth(t, cfg),
		DB:     newMockDB(t),
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, ":3000", srv.Addr)
	assert.Equal(t, 7*time.Second, srv.ReadTimeout)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewHTTPServer_RequiresAuth(t *testing.T) {
	_, err := NewHTTPServer(HTTPServerConfig{
		Config: testAppConfig(config.SessionBackendMemory, config.ProviderModeNone),
		Logger: discardLogger(),
	})
	require.Error(t, err)
}

func TestReadinessProbes(t *testing.T) {
	assert.Empty(t, readinessProbes(nil, nil))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	probes := readinessProbes(newMockDB(t), client)
	require.Len(t, probes, 2)
	require.Contains(t, probes, "postgres")
	require.Contains(t, probes, "redis")

	ctx := context.Background()
	require.NoError(t, probes["redis"](ctx))
	mr.Close()
	assert.Error(t, probes["redis"](ctx))
}

func TestBuildHTTPHandler_RecoversPanics(t *testing.T) {
	cfg := testAppConfig(config.SessionBackendMemory, config.ProviderModeNone)
	svcs := routerServices(HTTPServerConfig{Auth: buildTestAuth(t, cfg)}, cfg, discardLogger())
	svcs.Readiness = map[string]httpx.ReadinessProbe{"boom": func(context.Context) error { panic(errors.New("boom")) }}

	h, err := buildHTTPHandler(httpHandlerConfig{Logger: discardLogger(), Services: svcs})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
