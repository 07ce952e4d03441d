package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anonymizer"

// Metrics holds the collectors the server exports on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	SessionSaves      *prometheus.CounterVec
	DetectionRequests *prometheus.CounterVec
	DetectedSpans     prometheus.Counter
	PDFGenerations    *prometheus.CounterVec
	OpenEditors       prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SessionSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_saves_total",
			Help:      "Session saves by trigger point and outcome.",
		}, []string{"trigger", "outcome"}),
		DetectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_requests_total",
			Help:      "PII detection requests by outcome.",
		}, []string{"outcome"}),
		DetectedSpans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detected_spans_total",
			Help:      "PII spans returned by the detection service.",
		}),
		PDFGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_generations_total",
			Help:      "Anonymized PDF generations by outcome.",
		}, []string{"outcome"}),
		OpenEditors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_editors",
			Help:      "Editors currently held in memory.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SessionSaves,
		m.DetectionRequests,
		m.DetectedSpans,
		m.PDFGenerations,
		m.OpenEditors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome turns an error into the "outcome" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
