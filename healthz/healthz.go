// Package healthz serves liveness and readiness probes.
package healthz

import (
	"log/slog"
	"net/http"
)

// Handler answers 200 when every check passes and 503 otherwise.  With no
// checks it always answers 200.
type Handler struct {
	checks []func() error
}

func New(checks ...func() error) *Handler {
	return &Handler{
		checks: checks,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.checks {
		if err := check(); err != nil {
			slog.DebugContext(r.Context(), "Probe failed", slog.String("path", r.URL.Path), slog.Any("err", err))
			http.Error(w, "503 Service Unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("200 OK"))
}
