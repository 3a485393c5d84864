package server

import (
	"net/http"
	"time"

	"github.com/ricesearch/rank-eval/internal/metrics"
	"github.com/ricesearch/rank-eval/internal/pkg/logger"
	"github.com/ricesearch/rank-eval/internal/pkg/middleware"
	"github.com/ricesearch/rank-eval/internal/pkg/security"
)

// setupRoutes configures all HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	s.healthHandler.RegisterRoutes(mux)

	// Evaluation endpoints
	s.evalHandler.RegisterRoutes(mux)

	// Telemetry endpoints
	if s.metrics != nil {
		mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
		mux.Handle("GET /v1/metrics/history", s.metrics.HistoryHandler())
	}

	// Middleware chain, innermost first
	var handler http.Handler = ResponseWrapperMiddleware(mux)
	handler = corsMiddleware(handler)
	if s.apiKey != "" {
		handler = middleware.APIKeyAuth(s.apiKey)(handler)
	}
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	if s.metrics != nil {
		handler = metrics.HTTPMiddleware(s.metrics, handler)
	}

	return wrapWithLogging(handler, s.log)
}

// corsMiddleware adds permissive CORS headers for dashboard access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// wrapWithLogging returns a handler with request logging.
func wrapWithLogging(handler http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		handler.ServeHTTP(wrapped, r)

		log.Debug("HTTP request",
			"method", r.Method,
			"path", security.SanitizeForLog(r.URL.Path),
			"status", wrapped.status,
			"duration", time.Since(start),
			"headers", security.MaskSensitiveHeaders(r.Header),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
