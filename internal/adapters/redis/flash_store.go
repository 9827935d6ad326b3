package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FlashStore keeps one-shot messages. Take uses GETDEL so two concurrent
// readers can never both observe the same message.
type FlashStore struct {
	client redis.UniversalClient
	keys   keyer
}

// NewFlashStore creates a Redis-backed flash store sharing the session HMAC secret.
func NewFlashStore(client redis.UniversalClient, secret []byte) (*FlashStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("flash key secret is required")
	}
	return &FlashStore{client: client, keys: keyer{prefix: defaultFlashPrefix, secret: secret}}, nil
}

func (f *FlashStore) Put(ctx context.Context, key, message string, ttl time.Duration) error {
	if key == "" {
		return errors.New("flash key cannot be empty")
	}
	if err := f.client.Set(ctx, f.keys.key(key), message, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (f *FlashStore) Take(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	msg, err := f.client.GetDel(ctx, f.keys.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis getdel: %w", err)
	}
	return msg, true, nil
}
