package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun("bubble_up", StatusSuccess, 200*time.Millisecond)
	m.ObserveRun("bubble_up", StatusSuccess, time.Second)
	m.ObserveRun("log_pattern", StatusFailed, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("bubble_up", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("log_pattern", StatusFailed)))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.ObserveSample("selection", 1000)
	m.ObserveStepFailure("sequences")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "obsnote_sampled_documents_count{window=\"selection\"} 1")
	assert.Contains(t, string(body), "obsnote_log_pattern_step_failures_total{step=\"sequences\"} 1")
}
