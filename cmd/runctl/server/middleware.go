package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/metrics"
)

// Middleware wraps an http.Handler to collect Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.HTTPRequestInFlight.Inc()
		defer metrics.HTTPRequestInFlight.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()

		method := r.Method
		endpoint := endpointLabel(r)
		status := strconv.Itoa(rw.statusCode)

		metrics.HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
		metrics.HTTPRequestTotal.WithLabelValues(method, endpoint, status).Inc()
	})
}

// endpointLabel keeps the label cardinality bounded: run ids are replaced
// by the route pattern.
func endpointLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/v1/runs/") {
		if strings.HasSuffix(path, "/report") {
			return "/api/v1/runs/{run_id}/report"
		}
		return "/api/v1/runs/{run_id}"
	}
	return path
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// CorsMiddleware allows browser clients served from another origin to call
// the API. It is only installed in local mode.
func CorsMiddleware(next http.Handler, conf *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Global-Transaction-Id")
		header.Set("Access-Control-Expose-Headers", "Location")
		if origin != "*" {
			header.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
