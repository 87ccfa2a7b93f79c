package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.MessagesTotal.WithLabelValues("success", "complete").Inc()
	m.CommitsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ingest_messages_total{outcome="success",stage="complete"} 1`)
	assert.Contains(t, body, "ingest_commits_total 1")
}

func TestNewWithPrivateRegistriesDoesNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}

func TestMuxCountsOpsRequests(t *testing.T) {
	m := New(nil)
	mux := newMux(m, map[string]http.Handler{
		"/health/live": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	for _, path := range []string{"/health/live", "/health/live", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpsRequestsTotal.WithLabelValues("/health/live", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsRequestsTotal.WithLabelValues("/metrics", "200")))
}
