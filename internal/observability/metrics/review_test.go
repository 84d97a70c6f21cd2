package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewMetrics_Queue(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReviewMetrics(registry)
	require.NoError(t, err)

	m.SetQueue(7, 3, true)
	assert.InDelta(t, 7, testutil.ToFloat64(m.QueueLength), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ActiveWorkers), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CircuitBreakerOpen), 0)

	m.SetQueue(0, 0, false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.CircuitBreakerOpen), 0)
}

func TestReviewMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReviewMetrics(registry)
	require.NoError(t, err)

	m.RecordAttempt(true, "", 120*time.Millisecond)
	m.RecordAttempt(false, "keyword_check_failed", 80*time.Millisecond)
	m.RecordAttempt(false, "keyword_check_failed", 90*time.Millisecond)
	m.RecordDecision("completed")
	m.RecordGateBlock("nickname_reuse")
	m.AddPoints("approval", 100)
	m.AddPoints("approval", 20)
	m.RecordRecheck("exists")

	assert.InDelta(t, 1, testutil.ToFloat64(m.Attempts.WithLabelValues("passed", "")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Attempts.WithLabelValues("failed", "keyword_check_failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Decisions.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GateBlocks.WithLabelValues("nickname_reuse")), 0)
	assert.InDelta(t, 120, testutil.ToFloat64(m.PointsCredited.WithLabelValues("approval")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RecheckRuns.WithLabelValues("exists")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.AttemptDuration))
}

func TestReviewMetrics_VerifierStatusClass(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReviewMetrics(registry)
	require.NoError(t, err)

	tests := []struct {
		status int
		class  string
	}{
		{0, "error"},
		{200, "2xx"},
		{204, "2xx"},
		{404, "4xx"},
		{429, "4xx"},
		{502, "5xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.class, statusClass(tt.status))
		m.RecordVerifierRequest(tt.status, 50*time.Millisecond)
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.VerifierRequests.WithLabelValues("4xx")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.VerifierRequests.WithLabelValues("error")), 0)
}

func TestNewReviewMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewReviewMetrics(registry)
	require.NoError(t, err)

	_, err = NewReviewMetrics(registry)
	assert.Error(t, err)
}

func TestPublisherMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPublisherMetrics(registry)
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTTConnected), 0)
	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.MQTTConnected), 0)

	m.RecordDelivered(512)
	m.RecordDelivered(256)
	m.IncrementErrors()
	assert.InDelta(t, 2, testutil.ToFloat64(m.MQTTDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTTErrors), 0)

	m.RecordAlert("queue.breaker", nil)
	m.RecordAlert("queue.breaker", errors.New("smtp: connection refused"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.AlertsSent.WithLabelValues("queue.breaker")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AlertErrors), 0)
}
