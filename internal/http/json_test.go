package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/sessiond/internal/errors"
)

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", apperrors.ValidationField("email", "All fields required"), http.StatusUnprocessableEntity, "invalid_input", "All fields required"},
		{"conflict", apperrors.Conflict("User already exists"), http.StatusConflict, "conflict", "User already exists"},
		{"unauthorized", apperrors.Unauthorized("Unauthorized Attempt"), http.StatusUnauthorized, "unauthorized", "Unauthorized Attempt"},
		{"forbidden", apperrors.Forbidden("origin not allowed"), http.StatusForbidden, "forbidden_origin", "origin not allowed"},
		{"not found", apperrors.NotFound("nope"), http.StatusNotFound, "not_found", "nope"},
		{"storage", apperrors.Storage(errors.New("redis: i/o timeout")), http.StatusInternalServerError, "storage_failure", "session storage is unavailable, please retry"},
		{"provider", apperrors.Provider(errors.New("idp down")), http.StatusBadGateway, "provider_failure", "identity provider is unavailable"},
		{"untyped", errors.New("secret detail"), http.StatusInternalServerError, "internal", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, httptest.NewRequest(http.MethodGet, "/", nil), discardLogger(), tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, tt.wantMsg, body["message"])
			assert.NotContains(t, rec.Body.String(), "timeout")
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}

func TestWriteAppError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, apperrors.ValidationField("email", "bad"))
	assert.Equal(t, "email", decodeBody(t, rec)["field"])
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, map[string]int{"n": 1})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, make(chan int))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
