package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/sessiond/config"
	redisadapter "github.com/target/sessiond/internal/adapters/redis"
	"github.com/target/sessiond/internal/bootstrap"
	"github.com/target/sessiond/internal/service"
)

var errMemoryBackend = errors.New("the memory session backend lives inside the server process; nothing to administer")

// withSessions connects Redis, runs f against a session service, and closes the client.
func withSessions(ctx context.Context, cmdCtx *commandContext, f func(*service.SessionService) error) error {
	if cmdCtx.Config.Sessions.Backend == config.SessionBackendMemory {
		return errMemoryBackend
	}

	client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	sessions, err := newSessionService(&cmdCtx.Config, client, cmdCtx.Logger)
	if err != nil {
		return err
	}
	return f(sessions)
}

// newSessionService mirrors the server's Redis store so keys derive identically.
func newSessionService(cfg *config.AppConfig, client redis.UniversalClient, logger *slog.Logger) (*service.SessionService, error) {
	if cfg.Auth.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required to locate sessions")
	}
	store, err := redisadapter.NewSessionStore(client, redisadapter.SessionStoreOptions{
		Prefix: cfg.Sessions.KeyPrefix,
		Secret: []byte(cfg.Auth.SessionSecret),
	})
	if err != nil {
		return nil, fmt.Errorf("redis session store: %w", err)
	}
	return service.NewSessionService(service.SessionServiceOptions{
		Store:  store,
		TTL:    cfg.Auth.SessionTTL,
		Logger: logger,
	})
}
