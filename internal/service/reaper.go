package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/target/sessiond/internal/observability/metrics"
	"github.com/target/sessiond/internal/observability/statsd"
)

// DefaultSweepInterval is how often expired sessions are reclaimed.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper reclaims expired session records.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Sessions Sweeper       // Required
	Interval time.Duration // Optional: defaults to DefaultSweepInterval
	Metrics  statsd.Sink   // Optional: metrics sink (StatsD-compatible)
	Logger   *slog.Logger  // Optional
}

// ReaperService periodically sweeps expired sessions. Correctness never
// depends on it; expiry is enforced on every read.
type ReaperService struct {
	sessions Sweeper
	interval time.Duration
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session sweeper is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaperService{
		sessions: opts.Sessions,
		interval: interval,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "session_reaper"),
	}, nil
}

// Run sweeps once after a short jitter, then on every tick until ctx is done.
// Graceful cancellation returns nil.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session reaper", "interval", s.interval)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of reclaimed records.
func (s *ReaperService) RunOnce(ctx context.Context) (int, error) {
	return s.sessions.Sweep(ctx)
}

func (s *ReaperService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.EmitSweep(s.metrics, metrics.SweepMetric{Duration: time.Since(start), Err: err})
		s.logger.WarnContext(ctx, "session sweep failed", "error", err)
		return
	}
	metrics.EmitSweep(s.metrics, metrics.SweepMetric{Reclaimed: n, Duration: time.Since(start)})
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions reclaimed", "count", n)
	}
}

// waitWithJitter delays up to 10% of the interval so replicas started together
// do not sweep in lockstep.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
