package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountHealth registers unauthenticated liveness and readiness probes.
// Readiness reports 503 until ready returns true.
func MountHealth(r chi.Router, ready func() bool) {
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
