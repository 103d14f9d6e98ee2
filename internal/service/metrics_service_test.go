package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordScheduleConflict("ROOM")
	m.RecordScheduleConflict("ROOM")
	m.ObserveRecompute(RecomputeResultSkipped, time.Millisecond)
	m.RecordQueueJob("recompute", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scheduleConflicts.WithLabelValues("ROOM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recomputations.WithLabelValues(RecomputeResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueJobs.WithLabelValues("recompute", "error")))
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	assert.Equal(t, 0.5, testutil.ToFloat64(m.cacheHitRatio))
}

func TestMetricsServiceHandlerServesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordScheduleConflict("ROOM")
	m.ObserveRecompute(RecomputeResultOK, time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
