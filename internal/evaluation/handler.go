package evaluation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ricesearch/rank-eval/internal/observability"
	apperrors "github.com/ricesearch/rank-eval/internal/pkg/errors"
	"github.com/ricesearch/rank-eval/internal/ranking"
)

// Handler provides HTTP handlers for evaluation.
type Handler struct {
	svc *Service
}

// NewHandler creates a new evaluation handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers evaluation routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluation/update", h.handleUpdate)
	mux.HandleFunc("POST /v1/evaluation/run", h.handleRun)
	mux.HandleFunc("POST /v1/evaluation/judgments", h.handleLoadJudgments)
	mux.HandleFunc("GET /v1/evaluation/results", h.handleResults)
	mux.HandleFunc("POST /v1/evaluation/reset", h.handleReset)
	mux.HandleFunc("POST /v1/evaluation/snapshot", h.handleSnapshot)
	mux.HandleFunc("POST /v1/evaluation/restore", h.handleRestore)
	mux.HandleFunc("GET /v1/evaluation/audit", h.handleAudit)
}

// UpdateRequest carries pre-labeled lists straight to the metrics.
type UpdateRequest struct {
	Lists        ranking.Batch `json:"lists"`
	SampleWeight []float64     `json:"sample_weight,omitempty"`
}

// RunRequest carries model output to be labeled from loaded judgments.
type RunRequest struct {
	Results      []RankedResult `json:"results"`
	SampleWeight []float64      `json:"sample_weight,omitempty"`
}

// ResultsResponse reports the running means and metric configs.
type ResultsResponse struct {
	Results map[string]float64 `json:"results"`
	Configs []ranking.Config   `json:"configs"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.InvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Lists) == 0 {
		apperrors.WriteError(w, apperrors.InvalidRequestError("lists is required"))
		return
	}

	summary, err := h.svc.Update(r.Context(), req.Lists, req.SampleWeight)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	writeJSON(w, summary)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.InvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Results) == 0 {
		apperrors.WriteError(w, apperrors.InvalidRequestError("results is required"))
		return
	}

	summary, err := h.svc.EvaluateRun(r.Context(), req.Results, req.SampleWeight)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	writeJSON(w, summary)
}

func (h *Handler) handleLoadJudgments(w http.ResponseWriter, r *http.Request) {
	var judgments []RelevanceJudgment
	if err := json.NewDecoder(r.Body).Decode(&judgments); err != nil {
		apperrors.WriteError(w, apperrors.InvalidRequestError("invalid JSON body"))
		return
	}

	if err := h.svc.LoadJudgments(r.Context(), judgments); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ResultsResponse{
		Results: h.svc.Results(),
		Configs: h.svc.Configs(),
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SaveSnapshot(r.Context()); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RestoreSnapshot(r.Context()); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	audit := h.svc.AuditLog()
	if audit == nil {
		writeJSON(w, []observability.UpdateLogEntry{})
		return
	}

	q := r.URL.Query()
	from := time.Now().Add(-time.Hour)
	to := time.Now()

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apperrors.WriteError(w, apperrors.InvalidRequestError("from must be RFC3339"))
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apperrors.WriteError(w, apperrors.InvalidRequestError("to must be RFC3339"))
			return
		}
		to = t
	}

	entries, err := audit.UpdatesInRange(r.Context(), q.Get("metric"), from, to)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []observability.UpdateLogEntry{}
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
