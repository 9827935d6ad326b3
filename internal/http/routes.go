package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/target/sessiond/internal/domain/origin"
	"github.com/target/sessiond/internal/ports"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth             AuthFlow
	PasswordVerifier ports.CredentialVerifier
	Cookies          *SessionCookieCodec
	Origins          *origin.Policy
	// ClientBaseURL is the browser landing page after provider flows.
	ClientBaseURL       string
	ProviderRedirectURL string
	// TrustProxy derives the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy   bool
	MaxBodyBytes int64
	// Readiness probes served on /readyz, keyed by dependency name.
	Readiness map[string]ReadinessProbe
	Logger    *slog.Logger
}

func (s RouterServices) validate() error {
	switch {
	case s.Auth == nil:
		return errors.New("auth flow is required")
	case s.PasswordVerifier == nil:
		return errors.New("password verifier is required")
	case s.Cookies == nil:
		return errors.New("cookie codec is required")
	case s.Origins == nil:
		return errors.New("origin policy is required")
	case s.ClientBaseURL == "":
		return errors.New("client base URL is required")
	}
	return nil
}

// NewRouter creates and configures the HTTP router. Order matters: the origin
// gate runs before CORS so cookie handling never sees an unlisted origin.
func NewRouter(services RouterServices) (http.Handler, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(EchoRequestID)
	r.Use(Logging(logger))
	r.Use(Recover(logger))
	if services.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(OriginGate(services.Origins, logger))
	r.Use(CORS(services.Origins))

	sessionAuth := SessionAuthOptions{Auth: services.Auth, Cookies: services.Cookies, Logger: logger}
	h := &AuthHandlers{
		Svc:                 services.Auth,
		Cookies:             services.Cookies,
		ClientBaseURL:       services.ClientBaseURL,
		ProviderRedirectURL: services.ProviderRedirectURL,
		MaxBodyBytes:        services.MaxBodyBytes,
		Logger:              logger,
	}

	r.Get("/", rootHandler)
	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(services.Readiness, logger))

	r.Route("/auth", func(r chi.Router) {
		registerAuthRoutes(r, h, sessionAuth, VerifyPasswordOptions{
			Verifier:     services.PasswordVerifier,
			MaxBodyBytes: services.MaxBodyBytes,
			Logger:       logger,
		})
	})
	r.With(RequireAuth(sessionAuth)).Get("/profile", h.Profile)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusMethodNotAllowed, ErrCode: "method_not_allowed", Message: "method not allowed"})
	})
	return r, nil
}

func registerAuthRoutes(r chi.Router, h *AuthHandlers, sessionAuth SessionAuthOptions, verify VerifyPasswordOptions) {
	r.Post("/register", h.Register)
	r.With(OptionalAuth(sessionAuth)).Get("/status", h.Status)
	r.Get("/error", h.Error)

	r.Group(func(r chi.Router) {
		r.Use(RequireAllowedOrigin)
		r.With(VerifyPassword(verify)).Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/google", h.BeginProvider)
		r.Get("/google/callback", h.ProviderCallback)
	})
}
