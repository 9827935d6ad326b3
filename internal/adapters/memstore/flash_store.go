package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/target/sessiond/internal/data"
	"github.com/target/sessiond/internal/ports"
)

type flashEntry struct {
	message   string
	expiresAt time.Time
}

// FlashStore holds one-shot messages in memory.
type FlashStore struct {
	mu      sync.Mutex
	entries map[string]flashEntry
	clock   ports.Clock
}

// NewFlashStore creates an empty flash store. A nil clock uses wall time.
func NewFlashStore(clock ports.Clock) *FlashStore {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &FlashStore{entries: make(map[string]flashEntry), clock: clock}
}

func (f *FlashStore) Put(_ context.Context, key, message string, ttl time.Duration) error {
	if key == "" {
		return errors.New("flash key cannot be empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = flashEntry{message: message, expiresAt: f.clock.Now().Add(ttl)}
	return nil
}

func (f *FlashStore) Take(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(f.entries, key)
	if !e.expiresAt.After(f.clock.Now()) {
		return "", false, nil
	}
	return e.message, true, nil
}
