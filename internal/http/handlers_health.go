package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const (
	healthResponse = `{"status":"ok"}`
	readyTimeout   = 2 * time.Second
)

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// ReadinessProbe reports whether a dependency can serve traffic.
type ReadinessProbe func(ctx context.Context) error

// readyHandler runs every probe under a shared deadline. Probe errors are
// logged; the response only names the failing dependencies.
func readyHandler(probes map[string]ReadinessProbe, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var failing []string
		for _, name := range names {
			if err := probes[name](ctx); err != nil {
				logger.WarnContext(ctx, "readiness probe failed", "dependency", name, "error", err)
				failing = append(failing, name)
			}
		}
		if len(failing) > 0 {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unavailable",
				"failing": failing,
			})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// rootHandler confirms the API is reachable.
func rootHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"msg":     "Server is running",
	})
}
