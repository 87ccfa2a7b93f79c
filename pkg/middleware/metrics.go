// Package middleware provides HTTP middleware for the operational endpoints:
// request counting and per-request timeouts.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Count returns middleware that increments requests with the matched path
// and the response status code. Unknown paths are folded into "other" so
// scanners cannot blow up label cardinality.
func Count(requests *prometheus.CounterVec, known map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			requests.WithLabelValues(normalizePath(r.URL.Path, known), strconv.Itoa(sw.status)).Inc()
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

func normalizePath(path string, known map[string]bool) string {
	if known[path] {
		return path
	}
	return "other"
}
