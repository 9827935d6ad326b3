package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/target/sessiond/config"
	"github.com/target/sessiond/internal/adapters/devauth"
	"github.com/target/sessiond/internal/adapters/memstore"
	"github.com/target/sessiond/internal/adapters/oidc"
	"github.com/target/sessiond/internal/adapters/password"
	redisadapter "github.com/target/sessiond/internal/adapters/redis"
	"github.com/target/sessiond/internal/data"
	"github.com/target/sessiond/internal/domain/origin"
	httpx "github.com/target/sessiond/internal/http"
	"github.com/target/sessiond/internal/observability/statsd"
	"github.com/target/sessiond/internal/ports"
	"github.com/target/sessiond/internal/service"
)

// AuthDeps contains the connections and config BuildAuth wires together.
type AuthDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// Clock defaults to wall time.
	Clock ports.Clock
	// Provider overrides the configured identity provider. Used by tests.
	Provider   ports.IdentityProvider
	HTTPClient *http.Client
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Metrics is optional.
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// AuthComponents is everything the HTTP layer and the reaper need.
type AuthComponents struct {
	Auth             *service.AuthService
	Sessions         *service.SessionService
	PasswordVerifier *service.PasswordVerifier
	Cookies          *httpx.SessionCookieCodec
	Origins          *origin.Policy
}

// BuildAuth creates the session, credential and provider stack for the
// configured backends.
func BuildAuth(ctx context.Context, deps AuthDeps) (*AuthComponents, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}

	sessionStore, flashStore, err := buildStores(deps, clock, logger)
	if err != nil {
		return nil, err
	}

	users := data.NewUserRepo(deps.DB, clock)
	hasher := password.NewBcryptHasher(deps.BcryptCost)
	dummyHash, err := dummyPasswordHash(hasher)
	if err != nil {
		return nil, err
	}

	passwordVerifier, err := service.NewPasswordVerifier(service.PasswordVerifierOptions{
		Users:     users,
		Hasher:    hasher,
		DummyHash: dummyHash,
	})
	if err != nil {
		return nil, fmt.Errorf("password verifier: %w", err)
	}

	provider := deps.Provider
	if provider == nil {
		if provider, err = buildProvider(ctx, cfg, deps.HTTPClient, logger); err != nil {
			return nil, err
		}
	}
	var providerVerifier ports.CredentialVerifier
	if provider != nil {
		providerVerifier, err = service.NewProviderVerifier(service.ProviderVerifierOptions{
			Provider: provider,
			Users:    users,
			Timeout:  cfg.Auth.ProviderTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("provider verifier: %w", err)
		}
	}

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:  sessionStore,
		TTL:    cfg.Auth.SessionTTL,
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Sessions:         sessions,
		Users:            users,
		Hasher:           hasher,
		Provider:         provider,
		ProviderVerifier: providerVerifier,
		Flash:            flashStore,
		FlashTTL:         cfg.Auth.FlashTTL,
		SlidingSessions:  cfg.Auth.SlidingSessions,
		Metrics:          deps.Metrics,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	cookies, err := httpx.NewSessionCookieCodec(httpx.CookiePolicy{
		Name:        cfg.Auth.CookieName,
		Domain:      cfg.Auth.CookieDomain,
		TTL:         cfg.Auth.SessionTTL,
		CrossOrigin: cfg.Auth.CrossOrigin,
		Secure:      cfg.Auth.SecureCookies(cfg.IsDev),
	})
	if err != nil {
		return nil, fmt.Errorf("cookie codec: %w", err)
	}

	origins, err := origin.NewPolicy(cfg.Auth.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("origin policy: %w", err)
	}

	logger.Info("auth configured",
		"session_backend", cfg.Sessions.Backend,
		"provider_mode", cfg.Auth.ProviderMode,
		"cross_origin", cfg.Auth.CrossOrigin,
		"sliding_sessions", cfg.Auth.SlidingSessions,
		"allowed_origins", cfg.Auth.AllowedOrigins,
	)

	return &AuthComponents{
		Auth:             authSvc,
		Sessions:         sessions,
		PasswordVerifier: passwordVerifier,
		Cookies:          cookies,
		Origins:          origins,
	}, nil
}

func buildStores(deps AuthDeps, clock ports.Clock, logger *slog.Logger) (ports.SessionStore, ports.FlashStore, error) {
	cfg := deps.Config
	switch cfg.Sessions.Backend {
	case config.SessionBackendMemory:
		logger.Warn("using in-memory session store; sessions do not survive restarts or span replicas")
		return memstore.NewSessionStore(clock), memstore.NewFlashStore(clock), nil

	case config.SessionBackendRedis, "":
		if deps.RedisClient == nil {
			return nil, nil, errors.New("redis client is required for the redis session backend")
		}
		secret := []byte(cfg.Auth.SessionSecret)
		if len(secret) == 0 {
			// DEV only; Validate requires a secret otherwise.
			logger.Warn("SESSION_SECRET is empty; using an ephemeral key")
			var err error
			if secret, err = randomSecret(); err != nil {
				return nil, nil, err
			}
		}
		sessions, err := redisadapter.NewSessionStore(deps.RedisClient, redisadapter.SessionStoreOptions{
			Prefix: cfg.Sessions.KeyPrefix,
			Secret: secret,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis session store: %w", err)
		}
		flash, err := redisadapter.NewFlashStore(deps.RedisClient, secret)
		if err != nil {
			return nil, nil, fmt.Errorf("redis flash store: %w", err)
		}
		return sessions, flash, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session backend %q", cfg.Sessions.Backend)
	}
}

// buildProvider returns nil when provider login is disabled.
//
//nolint:ireturn // the provider implementation depends on the configured mode.
func buildProvider(
	ctx context.Context,
	cfg *config.AppConfig,
	client *http.Client,
	logger *slog.Logger,
) (ports.IdentityProvider, error) {
	switch cfg.Auth.ProviderMode {
	case config.ProviderModeOAuth:
		oauth := cfg.Auth.OAuth
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scopes:       oauth.Scopes,
			Issuer:       oauth.Issuer,
			HTTPClient:   client,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		return prov, nil

	case config.ProviderModeMock:
		if !cfg.IsDev {
			return nil, errors.New("mock identity provider requires DEV=true")
		}
		logger.Warn("using mock identity provider", "email", cfg.Auth.DevAuth.Email)
		prov, err := devauth.NewProvider(devauth.Config{
			Email:       cfg.Auth.DevAuth.Email,
			DisplayName: cfg.Auth.DevAuth.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		return prov, nil

	default:
		return nil, nil
	}
}

func dummyPasswordHash(h ports.PasswordHasher) (string, error) {
	secret, err := randomSecret()
	if err != nil {
		return "", err
	}
	hash, err := h.Hash(base64.RawURLEncoding.EncodeToString(secret[:32]))
	if err != nil {
		return "", fmt.Errorf("dummy password hash: %w", err)
	}
	return hash, nil
}

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return b, nil
}
