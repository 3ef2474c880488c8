// Package metrics provides Prometheus metrics for the report pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Row counts per stage
	RowsExtracted   *prometheus.CounterVec
	RowsTransformed prometheus.Counter
	RowsUnmatched   prometheus.Counter
	RowsRejected    *prometheus.CounterVec
	RowsLoaded      prometheus.Counter

	// Timing
	StageDuration *prometheus.HistogramVec

	// Reliability
	RetryAttempts *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec

	// Output
	SnapshotBytes prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "reportfeed"
	}

	m := &Metrics{
		RowsExtracted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_extracted_total",
				Help:      "Total number of records extracted per source",
			},
			[]string{"source"},
		),
		RowsTransformed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_transformed_total",
				Help:      "Total number of enriched records produced",
			},
		),
		RowsUnmatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_unmatched_total",
				Help:      "Total number of orders dropped by the inner join",
			},
		),
		RowsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_rejected_total",
				Help:      "Total number of validation rejections per reason",
			},
			[]string{"reason"},
		),
		RowsLoaded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_loaded_total",
				Help:      "Total number of records written to the snapshot",
			},
		),
		StageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs per outcome",
			},
			[]string{"status"},
		),
		SnapshotBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_bytes",
				Help:      "Size of the last published snapshot",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// AddRowsExtracted adds to the per-source extraction counter.
func (m *Metrics) AddRowsExtracted(source string, count float64) {
	m.RowsExtracted.WithLabelValues(source).Add(count)
}

// AddRowsTransformed adds to the transformed rows counter.
func (m *Metrics) AddRowsTransformed(count float64) {
	m.RowsTransformed.Add(count)
}

// AddRowsUnmatched adds to the join-dropped rows counter.
func (m *Metrics) AddRowsUnmatched(count float64) {
	m.RowsUnmatched.Add(count)
}

// IncRowsRejected increments the rejection counter for a reason.
func (m *Metrics) IncRowsRejected(reason string) {
	m.RowsRejected.WithLabelValues(reason).Inc()
}

// AddRowsLoaded adds to the loaded rows counter.
func (m *Metrics) AddRowsLoaded(count float64) {
	m.RowsLoaded.Add(count)
}

// ObserveStageDuration records one stage's wall time.
func (m *Metrics) ObserveStageDuration(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncRetryAttempts increments the retry attempts counter.
func (m *Metrics) IncRetryAttempts(operation string) {
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// IncRuns increments the run counter for an outcome.
func (m *Metrics) IncRuns(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// SetSnapshotBytes sets the last snapshot size.
func (m *Metrics) SetSnapshotBytes(bytes float64) {
	m.SnapshotBytes.Set(bytes)
}
