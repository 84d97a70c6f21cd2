package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics contains Prometheus metrics of the outbound event
// channels: MQTT and operator alerts.
type PublisherMetrics struct {
	MQTTConnected   prometheus.Gauge
	MQTTDelivered   prometheus.Counter
	MQTTErrors      prometheus.Counter
	MQTTMessageSize prometheus.Histogram
	AlertsSent      *prometheus.CounterVec
	AlertErrors     prometheus.Counter
}

// NewPublisherMetrics creates and registers the publisher metrics.
func NewPublisherMetrics(registry prometheus.Registerer) (*PublisherMetrics, error) {
	m := &PublisherMetrics{
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connection_status",
			Help:      "Current MQTT connection status (1 for connected, 0 for disconnected)",
		}),
		MQTTDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_delivered_total",
			Help:      "Total number of MQTT messages successfully delivered",
		}),
		MQTTErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_errors_total",
			Help:      "Total number of MQTT errors encountered",
		}),
		MQTTMessageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mqtt_message_size_bytes",
			Help:      "Size of MQTT messages in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Operator alerts sent by event kind",
		}, []string{"kind"}),
		AlertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_errors_total",
			Help:      "Operator alerts that failed to send",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register publisher metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus records the MQTT connection state.
func (m *PublisherMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.MQTTConnected.Set(1)
		return
	}
	m.MQTTConnected.Set(0)
}

// RecordDelivered counts one delivered MQTT message of size bytes.
func (m *PublisherMetrics) RecordDelivered(size int) {
	m.MQTTDelivered.Inc()
	m.MQTTMessageSize.Observe(float64(size))
}

// IncrementErrors counts one MQTT error.
func (m *PublisherMetrics) IncrementErrors() {
	m.MQTTErrors.Inc()
}

// RecordAlert counts one alert attempt for an event kind.
func (m *PublisherMetrics) RecordAlert(kind string, err error) {
	if err != nil {
		m.AlertErrors.Inc()
		return
	}
	m.AlertsSent.WithLabelValues(kind).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *PublisherMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.MQTTConnected
	ch <- m.MQTTDelivered
	ch <- m.MQTTErrors
	ch <- m.MQTTMessageSize
	m.AlertsSent.Collect(ch)
	ch <- m.AlertErrors
}

// Describe implements the prometheus.Collector interface.
func (m *PublisherMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.MQTTConnected.Desc()
	ch <- m.MQTTDelivered.Desc()
	ch <- m.MQTTErrors.Desc()
	ch <- m.MQTTMessageSize.Desc()
	m.AlertsSent.Describe(ch)
	ch <- m.AlertErrors.Desc()
}
