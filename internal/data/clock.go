package data

import (
	"sync"
	"time"
)

// TimeProvider supplies the current time to repositories.
type TimeProvider interface {
	Now() time.Time
}

var (
	_ TimeProvider = (*RealTimeProvider)(nil)
	_ TimeProvider = (*FixedTimeProvider)(nil)
)

// RealTimeProvider reads the wall clock in UTC.
type RealTimeProvider struct{}

// Now returns the current time in UTC.
func (*RealTimeProvider) Now() time.Time { return time.Now().UTC() }

// FixedTimeProvider is a manually advanced clock for tests. Safe for
// concurrent use so store and service goroutines can share one.
type FixedTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedTimeProvider starts the clock at t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: t}
}

// Now returns the clock's current reading.
func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// SetTime jumps the clock to t.
func (f *FixedTimeProvider) SetTime(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// AddTime advances the clock by d.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
