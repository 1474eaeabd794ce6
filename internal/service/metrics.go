package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for extraction metrics.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeAuth  = "auth"
	OutcomeError = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	sessions    *prometheus.CounterVec
	extractions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	upstream    *prometheus.CounterVec
	conversions prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchtxt",
			Name:      "sessions_started_total",
			Help:      "Dialogues started per platform.",
		}, []string{"platform"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchtxt",
			Name:      "extractions_total",
			Help:      "Finished extractions per platform and outcome.",
		}, []string{"platform", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "batchtxt",
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of batch extractions.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"platform"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchtxt",
			Name:      "upstream_requests_total",
			Help:      "Upstream API responses per platform and status code (0 on transport error).",
		}, []string{"platform", "status"}),
		conversions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchtxt",
			Name:      "html_conversions_total",
			Help:      "Text reports converted to html.",
		}),
	}
	m.registry.MustRegister(m.sessions, m.extractions, m.duration, m.upstream, m.conversions)
	return m
}

func (m *Metrics) SessionStarted(platform string) {
	m.sessions.WithLabelValues(platform).Inc()
}

func (m *Metrics) ExtractionDone(platform, outcome string, elapsed time.Duration) {
	m.extractions.WithLabelValues(platform, outcome).Inc()
	m.duration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

// ObserveUpstream satisfies platform.Observer.
func (m *Metrics) ObserveUpstream(platform string, status int) {
	m.upstream.WithLabelValues(platform, strconv.Itoa(status)).Inc()
}

func (m *Metrics) Converted() {
	m.conversions.Inc()
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ExtractionTotals sums extractions_total per outcome across platforms.
func (m *Metrics) ExtractionTotals() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to gather metrics")
	}

	totals := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "batchtxt_extractions_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" {
					totals[l.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return totals, nil
}
