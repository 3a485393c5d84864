package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// APIKeyAuth returns middleware that requires a matching API key on
// every request, taken from the X-API-Key header or a bearer token.
// Health and metrics endpoints are exempt so probes keep working.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	exempt := map[string]bool{
		"/":        true,
		"/healthz": true,
		"/readyz":  true,
		"/metrics": true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if subtle.ConstantTimeCompare([]byte(requestAPIKey(r)), []byte(apiKey)) != 1 {
				apperrors.WriteError(w, apperrors.New(apperrors.CodeUnauthorized, "invalid or missing API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestAPIKey extracts the presented API key from the request.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
