package httpx

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/domain/origin"
	apperrors "github.com/target/sessiond/internal/errors"
	"github.com/target/sessiond/internal/ports"
)

const maxUserAgentLen = 256

// EchoRequestID copies the request id chosen by middleware.RequestID onto the
// response so clients can quote it.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: string(apperrors.ErrCodeInternal),
						Message: "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// OriginGate evaluates the Origin header once and stores the decision for
// cookie handling further down the chain.
func OriginGate(policy *origin.Policy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := policy.Evaluate(r.Header.Get("Origin"))
			if !d.Allowed {
				logger.DebugContext(r.Context(), "origin denied", "origin", r.Header.Get("Origin"))
			}
			next.ServeHTTP(w, r.WithContext(SetOriginDecision(r.Context(), d)))
		})
	}
}

// CORS emits credentialed CORS headers for allowed origins only and answers
// pre-flight requests. The exact origin is echoed, never "*".
func CORS(policy *origin.Policy) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, o string) bool {
			return policy.Allows(o)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// RequireAllowedOrigin rejects cookie-bearing actions from unlisted origins.
func RequireAllowedOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !OriginDecisionFromContext(r.Context()).Allowed {
			WriteError(w, ErrorParams{
				Code:    http.StatusForbidden,
				ErrCode: string(apperrors.ErrCodeForbidden),
				Message: "origin not allowed",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VerifyPasswordOptions groups dependencies for VerifyPassword.
type VerifyPasswordOptions struct {
	Verifier     ports.CredentialVerifier
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// VerifyPassword decodes an email/secret body, runs the verifier, and attaches
// the Verification to the request context. Infrastructure failures end the
// request; rejections are left for the handler. An unreadable body counts as
// a rejected credential so every failed login answers 401.
func VerifyPassword(opts VerifyPasswordOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := decodeAuthRequest(w, r, opts.MaxBodyBytes)
			if err != nil {
				rejected := domainauth.Rejected{Reason: domainauth.ReasonInvalidCredentials}
				next.ServeHTTP(w, r.WithContext(SetVerificationInContext(r.Context(), rejected)))
				return
			}
			v, err := opts.Verifier.Verify(r.Context(), domainauth.PasswordCredential{
				Email:  req.Email,
				Secret: req.secret(),
			})
			if err != nil {
				WriteAppError(w, r, opts.Logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetVerificationInContext(r.Context(), v)))
		})
	}
}

// SessionAuthOptions groups dependencies for the session middlewares.
type SessionAuthOptions struct {
	Auth    AuthFlow
	Cookies *SessionCookieCodec
	Logger  *slog.Logger
}

func (o SessionAuthOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// resolve reads the session cookie and maps it to a principal. Stale cookies
// are cleared; sliding sessions get a refreshed cookie.
func (o SessionAuthOptions) resolve(w http.ResponseWriter, r *http.Request) (Authenticated, bool, error) {
	if !OriginDecisionFromContext(r.Context()).Allowed {
		return Authenticated{}, false, nil
	}
	id, ok := o.Cookies.FromRequest(r)
	if !ok {
		return Authenticated{}, false, nil
	}
	p, sess, err := o.Auth.Resolve(r.Context(), id)
	if errors.Is(err, domainauth.ErrSessionNotFound) {
		SetCookie(w, o.Cookies.Expire())
		return Authenticated{}, false, nil
	}
	if err != nil {
		return Authenticated{}, false, err
	}
	if o.Auth.SlidingSessions() {
		SetCookie(w, o.Cookies.Encode(sess))
	}
	return Authenticated{Principal: p, Session: sess}, true, nil
}

// OptionalAuth attaches the principal when a live session is presented.
// Storage failures degrade to an unauthenticated request.
func OptionalAuth(opts SessionAuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok, err := opts.resolve(w, r)
			if err != nil {
				opts.logger().WarnContext(r.Context(), "session lookup failed", "error", err)
			}
			if ok {
				r = r.WithContext(SetAuthInContext(r.Context(), a))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns a middleware that requires authentication.
// If the user is not authenticated, it returns a 401 Unauthorized response.
func RequireAuth(opts SessionAuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok, err := opts.resolve(w, r)
			if err != nil {
				WriteAppError(w, r, opts.logger(), err)
				return
			}
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: string(apperrors.ErrCodeUnauthorized),
					Message: "authentication required",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(SetAuthInContext(r.Context(), a)))
		})
	}
}

// sessionMeta captures audit details. RemoteAddr already reflects the client
// when RealIP is enabled for trusted proxies.
func sessionMeta(r *http.Request) domainauth.SessionMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ua := r.UserAgent()
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return domainauth.SessionMeta{IP: ip, UserAgent: ua}
}
