// Package metrics exposes Prometheus counters for the HTTP surface, record
// operations, the list cache and the sync worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "penjualan"

// Submission outcomes.
const (
	SubmitSuccess    = "success"
	SubmitValidation = "validation"
	SubmitTransient  = "transient"
	SubmitPermanent  = "permanent"
)

type Metrics struct {
	// Registry owns every collector below; a private registry lets tests
	// build as many instances as they need.
	Registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
	deletions     prometheus.Counter
	exports       prometheus.Counter
	exportedRows  prometheus.Histogram
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	syncOutcomes  *prometheus.CounterVec
	storedRecords prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_submissions_total",
				Help:      "Entry form submissions by outcome.",
			},
			[]string{"outcome"},
		),
		deletions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_deletions_total",
			Help:      "Confirmed record deletions.",
		}),
		exports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csv_exports_total",
			Help:      "CSV downloads served.",
		}),
		exportedRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "csv_export_rows",
			Help:      "Rows per CSV export.",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		}),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Record list cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Record list cache misses.",
			},
			[]string{"cache"},
		),
		syncOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_outcomes_total",
				Help:      "Sheet sync attempts by outcome.",
			},
			[]string{"outcome"},
		),
		storedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_records",
			Help:      "Records returned by the last full fetch.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncrSubmission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrDeletion() {
	m.deletions.Inc()
}

func (m *Metrics) ObserveExport(rows int) {
	m.exports.Inc()
	m.exportedRows.Observe(float64(rows))
}

func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSync counts a worker outcome; it matches the worker observer signature.
func (m *Metrics) IncrSync(outcome string) {
	m.syncOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetStoredRecords(n int) {
	m.storedRecords.Set(float64(n))
}

// Snapshot is a JSON-friendly summary of the record counters.
type Snapshot struct {
	Submissions map[string]float64 `json:"submissions"`
	Deletions   float64            `json:"deletions"`
	Exports     float64            `json:"exports"`
	Stored      float64            `json:"stored"`
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Submissions: make(map[string]float64, 4),
		Deletions:   metricValue(m.deletions),
		Exports:     metricValue(m.exports),
		Stored:      metricValue(m.storedRecords),
	}
	for _, o := range []string{SubmitSuccess, SubmitValidation, SubmitTransient, SubmitPermanent} {
		s.Submissions[o] = metricValue(m.submissions.WithLabelValues(o))
	}
	return s
}

// metricValue reads the current value of a counter or gauge.
func metricValue(c prometheus.Metric) float64 {
	pb := &dto.Metric{}
	if err := c.Write(pb); err != nil {
		return 0
	}
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	return 0
}
