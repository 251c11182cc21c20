package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RequestsTotal.WithLabelValues("GET", "/birds", "200").Inc()
	m.UploadsTotal.WithLabelValues("stored").Add(2)
	m.EventsTotal.WithLabelValues("bird.created", "published").Inc()
	m.RequestDuration.WithLabelValues("GET", "/birds").Observe(0.01)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["birdcatalog_http_requests_total"])
	assert.Equal(t, 2.0, values["birdcatalog_photo_uploads_total"])
	assert.Equal(t, 1.0, values["birdcatalog_events_total"])
	assert.Contains(t, names(families), "birdcatalog_http_request_duration_seconds")
	assert.Contains(t, names(families), "go_goroutines")
}

func TestNewUsesIsolatedRegistries(t *testing.T) {
	_, err := New()
	require.NoError(t, err)
	_, err = New()
	assert.NoError(t, err)
}

func names(families []*dto.MetricFamily) []string {
	out := make([]string, 0, len(families))
	for _, f := range families {
		out = append(out, f.GetName())
	}
	return out
}
