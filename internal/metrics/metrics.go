// Package metrics holds the Prometheus collectors for the catalog service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // by method, route, status
	RequestDuration *prometheus.HistogramVec // by method, route
	UploadsTotal    *prometheus.CounterVec   // by result: stored, rejected, error
	EventsTotal     *prometheus.CounterVec   // by kind, result: published, error

	registry *prometheus.Registry
}

// New registers the service collectors, plus Go and process collectors, on
// a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdcatalog_http_requests_total",
				Help: "HTTP requests handled, by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "birdcatalog_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdcatalog_photo_uploads_total",
				Help: "Photo uploads by result",
			},
			[]string{"result"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdcatalog_events_total",
				Help: "Catalog events by kind and publish result",
			},
			[]string{"kind", "result"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.RequestsTotal,
		m.RequestDuration,
		m.UploadsTotal,
		m.EventsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
