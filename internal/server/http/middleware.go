package http

import (
	"net/http"

	"atlas/internal/logging"
)

// CORSMiddleware handles CORS headers. The map page may be opened from a dev
// server on another origin; the bridge itself carries nothing sensitive.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs incoming requests
func LoggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/sse" {
				// The stream request would be logged once and then block for
				// the lifetime of the tab; the SSE handler logs it itself.
				logger.Info("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			}
			next.ServeHTTP(w, r)
		})
	}
}
