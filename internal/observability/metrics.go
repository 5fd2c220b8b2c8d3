package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// scrape pipeline.
type Metrics struct {
	PagesFetched    *prometheus.CounterVec // labels: source, outcome={success,error}
	FetchRetries    prometheus.Counter
	RecordsFetched  *prometheus.CounterVec // labels: source
	RecordsRejected *prometheus.CounterVec // labels: source, reason
	RecordsStored   *prometheus.CounterVec // labels: source

	Sessions        *prometheus.CounterVec // labels: status={success,partial,failure}
	SessionDuration prometheus.Histogram
	RunActive       prometheus.Gauge
	TriggersDropped prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PagesFetched,
		m.FetchRetries,
		m.RecordsFetched,
		m.RecordsRejected,
		m.RecordsStored,
		m.Sessions,
		m.SessionDuration,
		m.RunActive,
		m.TriggersDropped,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "pages_fetched_total",
			Help:      "Pages fetched by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts beyond the first, across all sources.",
		}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "records_extracted_total",
			Help:      "Candidate records extracted from fetched pages.",
		}, []string{"source"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "records_rejected_total",
			Help:      "Candidate records rejected by validation, by reason.",
		}, []string{"source", "reason"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "records_stored_total",
			Help:      "Validated records upserted into storage.",
		}, []string{"source"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "sessions_total",
			Help:      "Completed scrape sessions by overall status.",
		}, []string{"status"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vmgd_scraper",
			Name:      "session_duration_seconds",
			Help:      "Duration of a complete scrape session across all sources.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vmgd_scraper",
			Name:      "run_active",
			Help:      "1 while a scrape run is in progress, 0 when idle.",
		}),
		TriggersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmgd_scraper",
			Name:      "triggers_dropped_total",
			Help:      "Run triggers dropped because a run was already active.",
		}),
	}
}
