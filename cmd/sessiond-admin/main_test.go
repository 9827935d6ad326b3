package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sessiond/config"
	"github.com/target/sessiond/internal/devseed"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/service"
)

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Auth.SessionSecret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.SessionTTL = time.Hour
	cfg.Sessions.KeyPrefix = "session:"
	return cfg
}

func newTestSessions(t *testing.T) *service.SessionService {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions, err := newSessionService(testConfig(), client, nil)
	require.NoError(t, err)
	return sessions
}

func TestRevokeSession(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions(t)

	sess, err := sessions.Create(ctx, "user-1", domainauth.SessionMeta{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, revokeSession(ctx, sessions, sess.ID, &out))
	assert.Equal(t, "session "+service.Fingerprint(sess.ID)+": destroyed\n", out.String())
	assert.NotContains(t, out.String(), sess.ID)

	out.Reset()
	require.NoError(t, revokeSession(ctx, sessions, sess.ID, &out))
	assert.Contains(t, out.String(), "already_absent")

	_, err = sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestRevokeSession_RejectsMalformedID(t *testing.T) {
	err := revokeSession(context.Background(), newTestSessions(t), "short", &bytes.Buffer{})
	require.Error(t, err)
}

func TestNewSessionService_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SessionSecret = ""
	_, err := newSessionService(cfg, redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), nil)
	require.Error(t, err)
}

func TestWithSessions_MemoryBackend(t *testing.T) {
	cmdCtx := &commandContext{Ctx: context.Background(), Config: *testConfig()}
	cmdCtx.Config.Sessions.Backend = config.SessionBackendMemory
	err := withSessions(cmdCtx.Ctx, cmdCtx, func(*service.SessionService) error { return nil })
	assert.ErrorIs(t, err, errMemoryBackend)
}

func TestParseTimeoutFlags(t *testing.T) {
	opts, rest, err := parseTimeoutFlags("revoke", time.Second, []string{"--timeout", "3s", "abc"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, []string{"abc"}, rest)

	_, _, err = parseTimeoutFlags("migrate", time.Second, []string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestPrintUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printUsage(&out))
	for _, name := range []string{"migrate", "migrations", "revoke", "sweep"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestRunListMigrations(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runListMigrations(&commandContext{Out: &out}, nil))
	assert.Contains(t, out.String(), "0001_create_users")
}

func TestRunSeedDevUsers_RequiresDev(t *testing.T) {
	err := runSeedDevUsers(&commandContext{Ctx: context.Background(), Config: *testConfig()}, nil)
	require.Error(t, err)
}

func TestPrintSeedResult(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSeedResult(&out, devseed.Result{"b@example.com": false, "a@example.com": true}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "a@example.com"))
	assert.True(t, strings.HasSuffix(lines[0], "created"))
	assert.True(t, strings.HasSuffix(lines[1], "exists"))
}
