package evaluation

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(t *testing.T, metrics string) (*Handler, *http.ServeMux) {
	t.Helper()
	svc, err := NewService(testEvalConfig(metrics), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	h := NewHandler(svc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func TestHandler_Update(t *testing.T) {
	_, mux := newTestHandler(t, "mrr")

	body := `{"lists": [{"labels": [0, 1, 0], "scores": [0.9, 0.1, 0.5]}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/update", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got := summary.Batch["mrr"]; math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("batch mrr = %v, want 1/3", got)
	}
}

func TestHandler_Update_EmptyLists(t *testing.T) {
	_, mux := newTestHandler(t, "mrr")

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/update", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_Update_InvalidJSON(t *testing.T) {
	_, mux := newTestHandler(t, "mrr")

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/update", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_JudgmentsAndRun(t *testing.T) {
	_, mux := newTestHandler(t, "mrr")

	judgments := `[{"query_id": "q1", "doc_id": "d2", "relevance": 1}]`
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/judgments", strings.NewReader(judgments))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("judgments status = %d, body = %s", rec.Code, rec.Body.String())
	}

	run := `{"results": [{"query_id": "q1", "doc_ids": ["d1", "d2"], "scores": [0.9, 0.5]}]}`
	req = httptest.NewRequest(http.MethodPost, "/v1/evaluation/run", strings.NewReader(run))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got := summary.Batch["mrr"]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("mrr = %v, want 0.5", got)
	}
}

func TestHandler_ResultsAndReset(t *testing.T) {
	_, mux := newTestHandler(t, "mrr")

	body := `{"lists": [{"labels": [1, 0], "scores": [0.9, 0.1]}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/update", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/evaluation/results", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}

	var resp ResultsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Results["mrr"] != 1.0 {
		t.Errorf("mrr = %v, want 1.0", resp.Results["mrr"])
	}
	if len(resp.Configs) != 1 || resp.Configs[0].Kind != "mrr" {
		t.Errorf("unexpected configs %+v", resp.Configs)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/evaluation/reset", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/evaluation/results", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	resp = ResultsResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Results["mrr"] != 0 {
		t.Errorf("mrr after reset = %v, want 0", resp.Results["mrr"])
	}
}

func TestHandler_SnapshotWithoutStore(t *testing.T) {
	_, mux := newTestHandler(t, "mrr")

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/snapshot", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
