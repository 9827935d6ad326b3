// Package memstore provides in-process session and flash stores for single
// instance deployments and local development.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/target/sessiond/internal/data"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/ports"
)

// SessionStore is a mutex-guarded map of sessions. Expired entries are
// invisible to readers and reclaimed by Sweep.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session
	clock    ports.Clock
}

// NewSessionStore creates an empty store. A nil clock uses wall time.
func NewSessionStore(clock ports.Clock) *SessionStore {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &SessionStore{
		sessions: make(map[string]domainauth.Session),
		clock:    clock,
	}
}

func (m *SessionStore) Insert(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sessions[sess.ID]; ok && !cur.Expired(m.clock.Now()) {
		return domainauth.ErrSessionExists
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *SessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || sess.Expired(m.clock.Now()) {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

func (m *SessionStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return !sess.Expired(m.clock.Now()), nil
}

func (m *SessionStore) Extend(_ context.Context, id string, expiresAt time.Time) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.Expired(m.clock.Now()) {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	sess.ExpiresAt = expiresAt
	m.sessions[id] = sess
	return sess, nil
}

// Sweep deletes every session expired at now and returns how many were removed.
func (m *SessionStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of physically stored records, expired or not.
func (m *SessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
