package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sessiond/internal/adapters/memstore"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	authmocks "github.com/target/sessiond/internal/mocks/auth"
)

type countedMetric struct {
	name string
	tags map[string]string
}

// recordingSink collects Count calls; timings are ignored.
type recordingSink struct {
	mu     sync.Mutex
	counts []countedMetric
}

func (r *recordingSink) Count(name string, _ int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, countedMetric{name: name, tags: tags})
}

func (r *recordingSink) Timing(string, time.Duration, map[string]string) {}

func (r *recordingSink) snapshot() []countedMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]countedMetric(nil), r.counts...)
}

func TestAuthService_EmitsMetrics(t *testing.T) {
	f := newAuthFixture(t, false)
	sink := &recordingSink{}
	svc, err := NewAuthService(AuthServiceOptions{
		Sessions: f.svc.Sessions(),
		Users:    f.users,
		Hasher:   authmocks.PlainHasher{},
		Flash:    memstore.NewFlashStore(f.clock),
		Metrics:  sink,
	})
	require.NoError(t, err)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Secret: "pw"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Secret: "pw"})
	require.Error(t, err)

	_, sess, err := svc.Login(ctx, domainauth.Verified{Principal: p}, domainauth.SessionMeta{})
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, domainauth.Rejected{Reason: domainauth.ReasonInvalidCredentials}, domainauth.SessionMeta{})
	require.Error(t, err)
	_, err = svc.Logout(ctx, sess.ID)
	require.NoError(t, err)

	got := sink.snapshot()
	require.Len(t, got, 5)
	assert.Equal(t, map[string]string{"operation": "register", "method": "password", "result": "success"}, got[0].tags)
	assert.Equal(t, "conflict", got[1].tags["error_class"])
	assert.Equal(t, "success", got[2].tags["result"])
	assert.Equal(t, "rejected", got[3].tags["result"])
	assert.Equal(t, "invalid_credentials", got[3].tags["reason"])
	assert.Equal(t, "logout", got[4].tags["operation"])
}

func TestReaperService_EmitsSweepMetrics(t *testing.T) {
	sink := &recordingSink{}
	sweeper := &countingSweeper{count: 2}
	svc, err := NewReaperService(ReaperServiceOptions{Sessions: sweeper, Interval: 5 * time.Millisecond, Metrics: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	got := sink.snapshot()
	assert.Equal(t, "session.sweep", got[0].name)
	assert.Equal(t, "success", got[0].tags["result"])
	assert.Equal(t, "session.reclaimed", got[1].name)
}

func TestReaperService_EmitsSweepErrors(t *testing.T) {
	sink := &recordingSink{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Sessions: &countingSweeper{err: errors.New("redis down")},
		Interval: time.Hour,
		Metrics:  sink,
	})
	require.NoError(t, err)

	svc.runOnce(context.Background())
	got := sink.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].tags["result"])
	assert.Equal(t, "errors_errorstring", got[0].tags["error_class"])
}
