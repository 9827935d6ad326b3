package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sessiond/internal/domain/auth"
)

// countingSweeper is a simple Sweeper for testing.
type countingSweeper struct {
	calls atomic.Int32
	count int
	err   error
}

func (c *countingSweeper) Sweep(context.Context) (int, error) {
	c.calls.Add(1)
	return c.count, c.err
}

func TestNewReaperService(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	require.Error(t, err)

	svc, err := NewReaperService(ReaperServiceOptions{Sessions: &countingSweeper{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepInterval, svc.interval)
}

func TestReaperService_RunOnce(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	p, err := f.svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Secret: "pw"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.svc.Establish(ctx, p, domainauth.SessionMeta{})
		require.NoError(t, err)
	}
	f.clock.AddTime(DefaultSessionTTL)

	svc, err := NewReaperService(ReaperServiceOptions{Sessions: f.svc.Sessions()})
	require.NoError(t, err)

	n, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, f.sessions.Len())
}

func TestReaperService_RunSweepsUntilCanceled(t *testing.T) {
	sweeper := &countingSweeper{count: 1}
	svc, err := NewReaperService(ReaperServiceOptions{Sessions: sweeper, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestReaperService_RunSurvivesSweepErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("redis down")}
	svc, err := NewReaperService(ReaperServiceOptions{Sessions: sweeper, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = svc.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, sweeper.calls.Load(), int32(2))
}
