package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	m := InitMetrics("sloengine_test", "pipeline")
	require.NotNil(t, m)
	require.NotNil(t, m.RecommendationsTotal)
	require.NotNil(t, m.PipelineDuration)
	require.NotNil(t, m.ColdStartTotal)
	require.NotNil(t, m.BatchDuration)
	require.NotNil(t, m.BatchOutcomesTotal)
	require.NotNil(t, m.ServiceInfo)
}

func TestGet(t *testing.T) {
	m1 := InitMetrics("sloengine_test2", "")
	m2 := Get()
	assert.Same(t, m1, m2)
}

func TestGetLazyInit(t *testing.T) {
	defaultMetrics = nil
	m := Get()
	require.NotNil(t, m)
	assert.Same(t, m, Get())
}

func TestRecordRecommendation(t *testing.T) {
	m := InitMetrics("sloengine_test3", "")
	assert.NotPanics(t, func() {
		m.RecordRecommendation("availability", "success")
		m.RecordRecommendation("latency", "insufficient_data")
	})
}

func TestRecordPipelineDuration(t *testing.T) {
	m := InitMetrics("sloengine_test4", "")
	assert.NotPanics(t, func() {
		m.RecordPipelineDuration("availability", 120*time.Millisecond)
	})
}

func TestRecordColdStart(t *testing.T) {
	m := InitMetrics("sloengine_test5", "")
	assert.NotPanics(t, func() {
		m.RecordColdStart()
	})
}

func TestRecordBatchRun(t *testing.T) {
	m := InitMetrics("sloengine_test6", "")
	assert.NotPanics(t, func() {
		m.RecordBatchRun(45*time.Second, 10, 2, 1)
	})
}

func TestSetServiceInfo(t *testing.T) {
	m := InitMetrics("sloengine_test7", "")
	assert.NotPanics(t, func() {
		m.SetServiceInfo("1.0.0", "production")
	})
}

func TestHandler(t *testing.T) {
	InitMetrics("sloengine_test8", "")
	handler := Handler()
	require.NotNil(t, handler)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
