package redis

// Package redis provides Redis-based session and flash adapters.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/sessiond/internal/domain/auth"
)

const (
	defaultSessionPrefix = "session:"
	defaultFlashPrefix   = "flash:"
)

// keyer derives storage keys from bearer tokens so a leaked keyspace dump
// cannot be replayed as cookies.
type keyer struct {
	prefix string
	secret []byte
}

func (k keyer) key(id string) string {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(id))
	return k.prefix + hex.EncodeToString(mac.Sum(nil))
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	// Prefix is prepended to every key. Defaults to "session:".
	Prefix string
	// Secret keys the HMAC used to derive storage keys. Required.
	Secret []byte
}

// SessionStore is a Redis-based session store. Expiry is delegated to native
// key TTLs and re-checked on every read.
type SessionStore struct {
	client redis.UniversalClient
	keys   keyer
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient, opts SessionStoreOptions) (*SessionStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("session key secret is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionStore{client: client, keys: keyer{prefix: prefix, secret: opts.Secret}}, nil
}

// Insert stores a new session with SET NX so a colliding id is never overwritten.
func (s *SessionStore) Insert(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.keys.key(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return domainauth.ErrSessionExists
	}
	return nil
}

// Get loads a session. The raw id is restored from the caller since records never contain it.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}

	sess, err := s.load(ctx, s.keys.key(id))
	if err != nil {
		return domainauth.Session{}, err
	}
	sess.ID = id

	if sess.Expired(time.Now()) {
		if _, delErr := s.Delete(ctx, id); delErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", delErr)
		}
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session; existed is false when no key was present.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := s.client.Del(ctx, s.keys.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Extend rewrites the record with a later expiry. SET XX fails when a
// concurrent delete won, so a destroyed session is never resurrected.
func (s *SessionStore) Extend(ctx context.Context, id string, expiresAt time.Time) (domainauth.Session, error) {
	key := s.keys.key(id)
	sess, err := s.load(ctx, key)
	if err != nil {
		return domainauth.Session{}, err
	}
	sess.ID = id
	sess.ExpiresAt = expiresAt

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return domainauth.Session{}, errors.New("extended expiry is in the past")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, key, data, ttl).Result()
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis setxx: %w", err)
	}
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

// Sweep is a no-op: Redis evicts expired keys itself.
func (s *SessionStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *SessionStore) load(ctx context.Context, key string) (domainauth.Session, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, domainauth.ErrSessionNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}
