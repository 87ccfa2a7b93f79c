package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("vector_store", time.Second, false, func(context.Context) error { return nil })
	c.RegisterPing("redis", time.Second, true, func(context.Context) error { return errors.New("refused") })

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["vector_store"].Status)
	assert.Equal(t, StatusDegraded, report.Components["redis"].Status)
	assert.Equal(t, "refused", report.Components["redis"].Message)

	c.RegisterPing("postgres", time.Second, false, func(context.Context) error { return errors.New("down") })
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestRegisterPingTimesOut(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("object_storage", 10*time.Millisecond, false, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Components["object_storage"].Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("redis", time.Second, true, func(context.Context) error { return errors.New("refused") })

	rec := httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded is still ready")

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.RegisterPing("vector_store", time.Second, false, func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
