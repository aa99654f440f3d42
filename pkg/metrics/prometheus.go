// Package metrics exposes Prometheus counters and histograms for the
// recommendation pipeline and batch orchestrator. The HTTP exposition
// endpoint itself is the caller's concern; this package only records.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics container for the SLO engine.
type Metrics struct {
	RecommendationsTotal *prometheus.CounterVec
	PipelineDuration     *prometheus.HistogramVec
	ColdStartTotal       prometheus.Counter
	BatchDuration        prometheus.Histogram
	BatchOutcomesTotal   *prometheus.CounterVec
	ServiceInfo          *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics creates a fresh Metrics container under namespace/subsystem.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		RecommendationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recommendations_generated_total",
				Help:      "Total number of SLO recommendations generated, by SLI type and outcome",
			},
			[]string{"sli_type", "outcome"},
		),

		PipelineDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pipeline_duration_seconds",
				Help:      "Duration of a single-service recommendation pipeline run",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"sli_type"},
		),

		ColdStartTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cold_start_total",
				Help:      "Total number of pipeline runs that triggered cold-start lookback extension",
			},
		),

		BatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "batch_duration_seconds",
				Help:      "Duration of a full batch orchestrator run",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		BatchOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "batch_service_outcomes_total",
				Help:      "Per-service outcomes of batch orchestrator runs",
			},
			[]string{"outcome"},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Static build information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the process-wide metrics container, lazily initializing it
// with the default namespace if InitMetrics has not been called yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("sloengine", "")
	}
	return defaultMetrics
}

// RecordRecommendation records the outcome of generating one SLI recommendation.
func (m *Metrics) RecordRecommendation(sliType, outcome string) {
	m.RecommendationsTotal.WithLabelValues(sliType, outcome).Inc()
}

// RecordPipelineDuration records how long a single-service pipeline run took.
func (m *Metrics) RecordPipelineDuration(sliType string, d time.Duration) {
	m.PipelineDuration.WithLabelValues(sliType).Observe(d.Seconds())
}

// RecordColdStart increments the cold-start counter.
func (m *Metrics) RecordColdStart() {
	m.ColdStartTotal.Inc()
}

// RecordBatchRun records the duration and per-service outcome tally of a batch run.
func (m *Metrics) RecordBatchRun(d time.Duration, successful, failed, skipped int) {
	m.BatchDuration.Observe(d.Seconds())
	m.BatchOutcomesTotal.WithLabelValues("successful").Add(float64(successful))
	m.BatchOutcomesTotal.WithLabelValues("failed").Add(float64(failed))
	m.BatchOutcomesTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// SetServiceInfo publishes static build information as a gauge of value 1.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
// Mounting it on a server is the caller's responsibility.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer runs a minimal HTTP server exposing /metrics and /health.
// Provided for operators that want a standalone metrics port; the engine
// itself never calls this.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure is not actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
