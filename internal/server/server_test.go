package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ricesearch/rank-eval/internal/config"
	"github.com/ricesearch/rank-eval/internal/pkg/logger"
)

func testAppConfig() config.Config {
	return config.Config{
		Eval: config.EvalConfig{
			Metrics: "mrr,ndcg@5",
			Alpha:   0.5,
			Workers: 2,
		},
		Bus:      config.BusConfig{Type: "memory"},
		Snapshot: config.SnapshotConfig{Type: "memory"},
		Observability: config.ObservabilityConfig{
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
		},
	}
}

func newTestServer(t *testing.T, appCfg config.Config) (*Server, http.Handler) {
	t.Helper()

	srv, err := New(DefaultConfig(), appCfg, logger.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if srv.bus != nil {
			srv.bus.Close()
		}
		if srv.metrics != nil {
			srv.metrics.Close()
		}
	})
	return srv, srv.setupRoutes()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want %d", cfg.Port, 8080)
	}
	if cfg.Version != "dev" {
		t.Errorf("Version = %q, want %q", cfg.Version, "dev")
	}
	if cfg.ReadTimeout == 0 {
		t.Error("ReadTimeout should not be zero")
	}
	if cfg.WriteTimeout == 0 {
		t.Error("WriteTimeout should not be zero")
	}
	if cfg.ShutdownTimeout == 0 {
		t.Error("ShutdownTimeout should not be zero")
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	_, handler := newTestServer(t, testAppConfig())

	t.Run("root", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp["name"] != "rank-eval" {
			t.Errorf("name = %v, want rank-eval", resp["name"])
		}
	})

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			Ready      bool              `json:"ready"`
			Components map[string]string `json:"components"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if !resp.Ready {
			t.Error("expected ready")
		}
		if resp.Components["snapshot"] != "ok" {
			t.Errorf("snapshot component = %q, want ok", resp.Components["snapshot"])
		}
	})
}

func TestServer_EvaluationRoutes(t *testing.T) {
	_, handler := newTestServer(t, testAppConfig())

	t.Run("update wraps response", func(t *testing.T) {
		body := `{"lists": [{"labels": [0, 0, 1], "scores": [0.9, 0.5, 0.2]}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/update", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var resp struct {
			Data struct {
				Batch map[string]float64 `json:"batch"`
			} `json:"data"`
			Meta ResponseMeta `json:"meta"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if got := resp.Data.Batch["mrr"]; got != 1.0/3.0 {
			t.Errorf("mrr = %f, want %f", got, 1.0/3.0)
		}
		if resp.Meta.RequestID == "" {
			t.Error("expected request_id in meta")
		}
	})

	t.Run("results", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/evaluation/results", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("audit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/evaluation/audit?metric=mrr", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			Data []struct {
				Metric string `json:"metric"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(resp.Data) != 1 {
			t.Fatalf("expected 1 audit entry, got %d", len(resp.Data))
		}
		if resp.Data[0].Metric != "mrr" {
			t.Errorf("metric = %q, want mrr", resp.Data[0].Metric)
		}
	})

	t.Run("errors pass through unwrapped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/update", bytes.NewBufferString(`{"lists": []}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		var resp struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.Code == "" {
			t.Error("expected error code in response")
		}
	})
}

func TestServer_MetricsRoutes(t *testing.T) {
	_, handler := newTestServer(t, testAppConfig())

	t.Run("prometheus exposition", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("rankeval_")) {
			t.Error("expected rankeval_ metrics in exposition")
		}
	})

	t.Run("history", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics/history", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestServer_APIKey(t *testing.T) {
	appCfg := testAppConfig()
	appCfg.Security.APIKey = "secret"
	_, handler := newTestServer(t, appCfg)

	t.Run("rejects missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/evaluation/results", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("accepts valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/evaluation/results", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("healthz stays open", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestResponseWriterCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	if w.status != http.StatusOK {
		t.Errorf("initial status = %d, want %d", w.status, http.StatusOK)
	}

	w.WriteHeader(http.StatusNotFound)
	if w.status != http.StatusNotFound {
		t.Errorf("status after WriteHeader = %d, want %d", w.status, http.StatusNotFound)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/evaluation/update", nil))

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected CORS origin header")
		}
	})

	t.Run("passthrough", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}
