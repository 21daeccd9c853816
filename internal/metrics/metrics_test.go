package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.PromptCompleted("mock-alpha")
	m.PromptCompleted("mock-alpha")
	m.PromptFailed("mock-alpha", "backend_timeout")
	m.ChangeDetected("mock-alpha", "high")
	m.SessionFinished("mock-alpha", "partial")
	m.ObserveBackend("mock-alpha", 150*time.Millisecond, nil)
	m.ObserveBackend("mock-alpha", time.Second, errors.New("boom"))
	m.RequestServed("/v1/models", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.prompts.WithLabelValues("mock-alpha", "completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prompts.WithLabelValues("mock-alpha", "failed", "backend_timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes.WithLabelValues("mock-alpha", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("mock-alpha", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/v1/models", "200")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.PromptCompleted("mock-beta")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `driftwatch_prompts_total{kind="",model="mock-beta",outcome="completed"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PromptCompleted("x")
	m.PromptFailed("x", "y")
	m.ChangeDetected("x", "low")
	m.SessionFinished("x", "completed")
	m.ObserveBackend("x", time.Second, nil)
	m.RequestServed("/health", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
