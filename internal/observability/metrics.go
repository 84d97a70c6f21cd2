// Package observability owns the Prometheus registry of the review core and
// exposes it over HTTP.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gigshield/reviewcore/internal/events"
	"github.com/gigshield/reviewcore/internal/observability/metrics"
)

// Metrics bundles every collector registered by the service.
type Metrics struct {
	registry  *prometheus.Registry
	Review    *metrics.ReviewMetrics
	Publisher *metrics.PublisherMetrics
}

// NewMetrics creates a registry with the process and Go runtime collectors
// plus the review and publisher metrics.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	review, err := metrics.NewReviewMetrics(registry)
	if err != nil {
		return nil, err
	}
	publisher, err := metrics.NewPublisherMetrics(registry)
	if err != nil {
		return nil, err
	}

	log.Debug("metrics registry initialized")
	return &Metrics{registry: registry, Review: review, Publisher: publisher}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterEventBus exports the bus counters, read from stats on every scrape.
func (m *Metrics) RegisterEventBus(stats func() events.Stats) error {
	counter := func(name, help string, value func(events.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "reviewcore",
			Subsystem: "events",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats())) })
	}
	for _, c := range []prometheus.Collector{
		counter("received_total", "Events published to the bus",
			func(s events.Stats) uint64 { return s.EventsReceived }),
		counter("processed_total", "Events delivered to every consumer",
			func(s events.Stats) uint64 { return s.EventsProcessed }),
		counter("dropped_total", "Events dropped because the bus buffer was full",
			func(s events.Stats) uint64 { return s.EventsDropped }),
		counter("consumer_errors_total", "Consumer deliveries that returned an error",
			func(s events.Stats) uint64 { return s.ConsumerErrors }),
	} {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
