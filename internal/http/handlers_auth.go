package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	apperrors "github.com/target/sessiond/internal/errors"
	"github.com/target/sessiond/internal/http/validation"
	"github.com/target/sessiond/internal/service"
)

// AuthFlow is the session orchestration surface the handlers depend on.
// *service.AuthService implements it.
type AuthFlow interface {
	Register(ctx context.Context, in service.RegisterInput) (domainauth.Principal, error)
	Login(ctx context.Context, v domainauth.Verification, meta domainauth.SessionMeta) (domainauth.Principal, domainauth.Session, error)
	Resolve(ctx context.Context, sessionID string) (domainauth.Principal, domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) (service.DestroyResult, error)
	SlidingSessions() bool

	ProviderEnabled() bool
	BeginProviderLogin(ctx context.Context, redirectURL string) (service.BeginLoginResult, error)
	VerifyProvider(ctx context.Context, cred domainauth.ProviderCredential) (domainauth.Verification, error)
	RecordFailure(ctx context.Context, message string) (string, error)
	TakeFailure(ctx context.Context, key string) string
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthFlow
	Cookies *SessionCookieCodec
	// ClientBaseURL is where browser flows land after the provider round trip.
	ClientBaseURL string
	// ProviderRedirectURL is the callback URL registered with the IdP.
	ProviderRedirectURL string
	MaxBodyBytes        int64
	Logger              *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// Register creates an account without establishing a session.
// POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	body, err := decodeAuthRequest(w, r, h.MaxBodyBytes)
	if err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}
	req := registerRequest{
		Name:     strings.TrimSpace(body.Name),
		Email:    strings.TrimSpace(body.Email),
		Password: body.secret(),
	}
	if err := validation.Struct(req); err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}

	if _, err := h.Svc.Register(r.Context(), service.RegisterInput{
		Name:   req.Name,
		Email:  req.Email,
		Secret: req.Password,
	}); err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"msg":     "User registered successfully",
	})
}

// Login turns the Verification attached by VerifyPassword into a session.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	v, ok := VerificationFromContext(r.Context())
	if !ok {
		WriteAppError(w, r, h.logger(), apperrors.Internal("credential verification did not run"))
		return
	}
	p, sess, err := h.Svc.Login(r.Context(), v, sessionMeta(r))
	if err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}
	SetCookie(w, h.Cookies.Encode(sess))
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"msg":     "Login Successful",
		"user":    p,
	})
}

// BeginProvider starts the identity provider flow.
// GET /auth/google.
func (h *AuthHandlers) BeginProvider(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.ProviderEnabled() {
		WriteAppError(w, r, h.logger(), apperrors.NotFound("provider login is not configured"))
		return
	}
	res, err := h.Svc.BeginProviderLogin(r.Context(), h.ProviderRedirectURL)
	if err != nil {
		h.logger().WarnContext(r.Context(), "begin provider login failed", "error", err)
		h.fail(w, r, "")
		return
	}
	SetCookie(w, h.Cookies.transient(stateCookieName, res.State))
	SetCookie(w, h.Cookies.transient(nonceCookieName, res.Nonce))
	http.Redirect(w, r, res.AuthURL, http.StatusFound)
}

// ProviderCallback completes the identity provider flow. Success lands on the
// client base URL with a session cookie; every failure lands on /auth/error.
// GET /auth/google/callback.
func (h *AuthHandlers) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.ProviderEnabled() {
		WriteAppError(w, r, h.logger(), apperrors.NotFound("provider login is not configured"))
		return
	}
	q := r.URL.Query()
	cred := domainauth.ProviderCredential{
		Code:          q.Get("code"),
		State:         q.Get("state"),
		ExpectedState: cookieValue(r, stateCookieName),
		Nonce:         cookieValue(r, nonceCookieName),
	}
	SetCookie(w, h.Cookies.expire(stateCookieName))
	SetCookie(w, h.Cookies.expire(nonceCookieName))

	if idpErr := q.Get("error"); idpErr != "" {
		h.logger().InfoContext(r.Context(), "provider returned error", "error", idpErr)
		h.fail(w, r, string(domainauth.ReasonProviderRejected))
		return
	}

	v, err := h.Svc.VerifyProvider(r.Context(), cred)
	if err != nil {
		h.logger().WarnContext(r.Context(), "provider verification failed", "error", err)
		h.fail(w, r, "")
		return
	}
	if rej, ok := v.(domainauth.Rejected); ok {
		h.fail(w, r, string(rej.Reason))
		return
	}

	_, sess, err := h.Svc.Login(r.Context(), v, sessionMeta(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "provider session failed", "error", err)
		h.fail(w, r, "")
		return
	}
	SetCookie(w, h.Cookies.Encode(sess))
	http.Redirect(w, r, h.ClientBaseURL, http.StatusFound)
}

// fail records message (when non-empty) and sends the browser to /auth/error.
func (h *AuthHandlers) fail(w http.ResponseWriter, r *http.Request, message string) {
	if message != "" {
		key, err := h.Svc.RecordFailure(r.Context(), message)
		if err != nil {
			h.logger().WarnContext(r.Context(), "failed to record flash message", "error", err)
		} else {
			SetCookie(w, h.Cookies.transient(flashCookieName, key))
		}
	}
	http.Redirect(w, r, "/auth/error", http.StatusFound)
}

// Error forwards the one-shot failure message to the client application.
// GET /auth/error.
func (h *AuthHandlers) Error(w http.ResponseWriter, r *http.Request) {
	key := cookieValue(r, flashCookieName)
	if key != "" {
		SetCookie(w, h.Cookies.expire(flashCookieName))
	}
	msg := h.Svc.TakeFailure(r.Context(), key)
	http.Redirect(w, r, withMessage(h.ClientBaseURL, msg), http.StatusFound)
}

// Logout destroys the server session and always clears the cookie.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	SetCookie(w, h.Cookies.Expire())

	id, ok := h.Cookies.FromRequest(r)
	if !ok {
		writeAlreadyLoggedOut(w)
		return
	}
	res, err := h.Svc.Logout(r.Context(), id)
	if err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}
	if res == service.AlreadyAbsent {
		writeAlreadyLoggedOut(w)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"msg":     "Logout successful",
	})
}

func writeAlreadyLoggedOut(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"error":   "already logged out",
	})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	a, ok := AuthFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"authenticated": false,
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"authenticated": true,
		"user":          a.Principal,
		"expires_at":    a.Session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Profile returns the authenticated principal.
// GET /profile.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteAppError(w, r, h.logger(), apperrors.Unauthorized("authentication required"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    p,
	})
}

// withMessage appends message as the "message" query parameter of base.
func withMessage(base, message string) string {
	u, err := url.Parse(base)
	if err != nil {
		return "/?message=" + url.QueryEscape(message)
	}
	q := u.Query()
	q.Set("message", message)
	u.RawQuery = q.Encode()
	return u.String()
}
