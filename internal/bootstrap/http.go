package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/target/sessiond/config"
	httpx "github.com/target/sessiond/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Auth        *AuthComponents
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewHTTPServer builds the server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler, err := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: routerServices(cfg, appCfg, logger),
	})
	if err != nil {
		return nil, err
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":3000"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  appCfg.HTTP.ReadTimeout,
		WriteTimeout: appCfg.HTTP.WriteTimeout,
		IdleTimeout:  appCfg.HTTP.IdleTimeout,
	}, nil
}

func routerServices(cfg HTTPServerConfig, appCfg *config.AppConfig, logger *slog.Logger) httpx.RouterServices {
	services := httpx.RouterServices{
		ClientBaseURL:       appCfg.Auth.ClientBaseURL,
		ProviderRedirectURL: appCfg.Auth.OAuth.RedirectURL,
		TrustProxy:          appCfg.HTTP.TrustProxy,
		MaxBodyBytes:        appCfg.HTTP.MaxBodyBytes,
		Readiness:           readinessProbes(cfg.DB, cfg.RedisClient),
		Logger:              logger,
	}
	if cfg.Auth != nil {
		services.Auth = cfg.Auth.Auth
		services.PasswordVerifier = cfg.Auth.PasswordVerifier
		services.Cookies = cfg.Auth.Cookies
		services.Origins = cfg.Auth.Origins
	}
	return services
}

func readinessProbes(db *sql.DB, client redis.UniversalClient) map[string]httpx.ReadinessProbe {
	probes := map[string]httpx.ReadinessProbe{}
	if db != nil {
		probes["postgres"] = db.PingContext
	}
	if client != nil {
		probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return probes
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
}

// The router installs request ids, access logging and panic recovery itself,
// in that order, so log lines carry the id of the request they describe.
func buildHTTPHandler(cfg httpHandlerConfig) (http.Handler, error) {
	services := cfg.Services
	if services.Logger == nil {
		services.Logger = cfg.Logger
	}
	return httpx.NewRouter(services)
}
