package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/middleware"
)

// checkTimeout bounds each request so a hung dependency check cannot hang
// the health endpoint.
const checkTimeout = 4 * time.Second

// Server exposes /metrics plus whatever extra routes the caller mounts
// (health endpoints).
type Server struct {
	srv *http.Server
}

func NewServer(port int, m *Metrics, routes map[string]http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newMux(m, routes),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}}
}

func newMux(m *Metrics, routes map[string]http.Handler) http.Handler {
	mux := http.NewServeMux()
	known := map[string]bool{"/": true, "/metrics": true}
	mux.Handle("/metrics", m.Handler())
	for pattern, h := range routes {
		mux.Handle(pattern, middleware.Timeout(checkTimeout)(h))
		known[pattern] = true
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Trace Ingestor</h1><p><a href="/metrics">/metrics</a></p></body></html>`)
	})
	return middleware.Count(m.OpsRequestsTotal, known)(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
