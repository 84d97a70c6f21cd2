// Package metrics provides the Prometheus collectors of the review core.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reviewcore"

// ReviewMetrics contains the Prometheus metrics of the review pipeline:
// queue, engine, gates, ledger and the continuous check scheduler.
type ReviewMetrics struct {
	QueueLength        prometheus.Gauge
	ActiveWorkers      prometheus.Gauge
	CircuitBreakerOpen prometheus.Gauge

	Attempts        *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	Decisions       *prometheus.CounterVec
	GateBlocks      *prometheus.CounterVec
	PointsCredited  *prometheus.CounterVec
	RecheckRuns     *prometheus.CounterVec

	VerifierRequests *prometheus.CounterVec
	VerifierLatency  prometheus.Histogram
}

// NewReviewMetrics creates and registers the review metrics.
func NewReviewMetrics(registry prometheus.Registerer) (*ReviewMetrics, error) {
	m := &ReviewMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register review metrics: %w", err)
	}
	return m, nil
}

func (m *ReviewMetrics) initMetrics() {
	m.QueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Number of task ids waiting in the review queue",
	})
	m.ActiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_active_workers",
		Help:      "Number of review attempts currently running",
	})
	m.CircuitBreakerOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_circuit_breaker_open",
		Help:      "1 while the review queue circuit breaker halts dispatch",
	})

	m.Attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_attempts_total",
		Help:      "Review attempts by outcome and failure kind",
	}, []string{"outcome", "failure_kind"})
	m.AttemptDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "review_attempt_duration_seconds",
		Help:      "Duration of one verification attempt including the timing gate",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_decisions_total",
		Help:      "Final review decisions by status",
	}, []string{"status"})
	m.GateBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_blocks_total",
		Help:      "Approvals overridden by an anti-fraud gate",
	}, []string{"gate"})
	m.PointsCredited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_credited_total",
		Help:      "Points credited by transaction kind",
	}, []string{"kind"})
	m.RecheckRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recheck_runs_total",
		Help:      "Continuous check runs by result",
	}, []string{"result"})

	m.VerifierRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifier_requests_total",
		Help:      "Requests to the content verifier by status class",
	}, []string{"status"})
	m.VerifierLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verifier_request_duration_seconds",
		Help:      "Latency of content verifier requests",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
}

// SetQueue publishes a queue snapshot.
func (m *ReviewMetrics) SetQueue(length, active int, breakerOpen bool) {
	m.QueueLength.Set(float64(length))
	m.ActiveWorkers.Set(float64(active))
	if breakerOpen {
		m.CircuitBreakerOpen.Set(1)
	} else {
		m.CircuitBreakerOpen.Set(0)
	}
}

// RecordAttempt counts one engine verdict. failureKind is empty on a pass.
func (m *ReviewMetrics) RecordAttempt(passed bool, failureKind string, d time.Duration) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.Attempts.WithLabelValues(outcome, failureKind).Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

// RecordDecision counts a task reaching status.
func (m *ReviewMetrics) RecordDecision(status string) {
	m.Decisions.WithLabelValues(status).Inc()
}

// RecordGateBlock counts an approval overridden by gate.
func (m *ReviewMetrics) RecordGateBlock(gate string) {
	m.GateBlocks.WithLabelValues(gate).Inc()
}

// AddPoints counts credited points.
func (m *ReviewMetrics) AddPoints(kind string, amount int64) {
	m.PointsCredited.WithLabelValues(kind).Add(float64(amount))
}

// RecordRecheck counts one continuous check run.
func (m *ReviewMetrics) RecordRecheck(result string) {
	m.RecheckRuns.WithLabelValues(result).Inc()
}

// RecordVerifierRequest counts one verifier round trip. status is the HTTP
// status code, or zero for a transport error.
func (m *ReviewMetrics) RecordVerifierRequest(status int, d time.Duration) {
	m.VerifierRequests.WithLabelValues(statusClass(status)).Inc()
	m.VerifierLatency.Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Collect implements the prometheus.Collector interface.
func (m *ReviewMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.QueueLength
	ch <- m.ActiveWorkers
	ch <- m.CircuitBreakerOpen
	m.Attempts.Collect(ch)
	ch <- m.AttemptDuration
	m.Decisions.Collect(ch)
	m.GateBlocks.Collect(ch)
	m.PointsCredited.Collect(ch)
	m.RecheckRuns.Collect(ch)
	m.VerifierRequests.Collect(ch)
	ch <- m.VerifierLatency
}

// Describe implements the prometheus.Collector interface.
func (m *ReviewMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.QueueLength.Desc()
	ch <- m.ActiveWorkers.Desc()
	ch <- m.CircuitBreakerOpen.Desc()
	m.Attempts.Describe(ch)
	ch <- m.AttemptDuration.Desc()
	m.Decisions.Describe(ch)
	m.GateBlocks.Describe(ch)
	m.PointsCredited.Describe(ch)
	m.RecheckRuns.Describe(ch)
	m.VerifierRequests.Describe(ch)
	ch <- m.VerifierLatency.Desc()
}
