package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	apperrors "github.com/target/sessiond/internal/errors"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 64 << 10

// ErrorBody is the envelope for every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Message string
	Field   string
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, ErrorBody{Error: p.ErrCode, Message: p.Message, Field: p.Field})
}

// WriteAppError renders err through the error taxonomy. Errors outside the
// taxonomy become a generic internal error; causes are logged, never rendered.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}

	status := appErr.HTTPStatus()
	if status == http.StatusFound {
		// provider failures only redirect from browser flows
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "code", appErr.Code, "error", err)
	}
	WriteError(w, ErrorParams{
		Code:    status,
		ErrCode: string(appErr.Code),
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// authRequest is the payload accepted by register and login. "secret" is
// accepted as an alias of "password".
type authRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Secret   string `json:"secret"`
}

func (a authRequest) secret() string {
	if a.Password != "" {
		return a.Password
	}
	return a.Secret
}

// decodeAuthRequest reads a JSON or form-encoded body bounded by maxBytes.
func decodeAuthRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (authRequest, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return authRequest{}, bodyError(err)
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return authRequest{}, apperrors.Validation("malformed form body")
		}
		return authRequest{
			Name:     form.Get("name"),
			Email:    form.Get("email"),
			Password: form.Get("password"),
			Secret:   form.Get("secret"),
		}, nil
	}

	var req authRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return authRequest{}, bodyError(err)
	}
	return req, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.Validation("request body too large")
	}
	if errors.Is(err, io.EOF) {
		return apperrors.Validation("All fields required")
	}
	return apperrors.Validation("malformed request body")
}
