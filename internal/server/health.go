package server

import (
	"encoding/json"
	"net/http"
)

// HealthHandler serves liveness, readiness and version endpoints.
type HealthHandler struct {
	srv     *Server
	version string
}

// NewHealthHandler creates a health handler bound to the server.
func NewHealthHandler(srv *Server, version string) *HealthHandler {
	return &HealthHandler{srv: srv, version: version}
}

// RegisterRoutes registers the health routes.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", h.handleRoot)
	mux.HandleFunc("GET /healthz", h.handleLiveness)
	mux.HandleFunc("GET /readyz", h.handleReadiness)
}

func (h *HealthHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":    "rank-eval",
		"version": h.version,
		"status":  "ok",
	})
}

func (h *HealthHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *HealthHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"evaluation": "ok",
		"bus":        "ok",
		"snapshot":   "disabled",
	}
	if h.srv.store != nil {
		components["snapshot"] = "ok"
	}
	if h.srv.metrics != nil {
		components["metrics"] = "ok"
	}

	status := http.StatusOK
	ready := true
	if h.srv.eval == nil {
		components["evaluation"] = "unavailable"
		status = http.StatusServiceUnavailable
		ready = false
	}

	h.writeJSON(w, status, map[string]any{
		"ready":      ready,
		"components": components,
	})
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
