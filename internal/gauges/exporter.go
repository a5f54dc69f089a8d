package gauges

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes named numeric gauges for scraping.
type Exporter struct {
	registry *prometheus.Registry
	gauge    *prometheus.GaugeVec
}

// NewExporter creates an exporter with its own registry, including the
// standard Go and process collectors.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()

	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metric",
			Help: "Latest computed metric values in the reference currency.",
		},
		[]string{"type", "name"},
	)

	registry.MustRegister(gauge)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Exporter{
		registry: registry,
		gauge:    gauge,
	}
}

// Set updates the gauge for a (type, name) pair. Callers pass NaN to mark
// a value as unavailable.
func (e *Exporter) Set(metricType, name string, value float64) {
	e.gauge.WithLabelValues(metricType, name).Set(value)
}

// Handler returns the scrape handler for this exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
