package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Sync metrics
	SyncRunsTotal       *prometheus.CounterVec
	SyncRunDuration     prometheus.Histogram
	SyncRunsInProgress  prometheus.Gauge
	AccountSyncsTotal   *prometheus.CounterVec
	RecordsProcessed    *prometheus.CounterVec
	RecordsDropped      *prometheus.CounterVec
	QualityWarnings     *prometheus.CounterVec
	CallBudgetWaits     prometheus.Counter
	CallBudgetWaitTotal prometheus.Counter

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// Aggregation metrics
	AggregationQueries *prometheus.CounterVec
}

// New registers every collector with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_sync_runs_total",
				Help: "Total number of sync cycles",
			},
			[]string{"status"},
		),

		SyncRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insights_sync_run_duration_seconds",
				Help:    "Sync cycle duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),

		SyncRunsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "insights_sync_runs_in_progress",
				Help: "Number of sync cycles currently running",
			},
		),

		AccountSyncsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_account_syncs_total",
				Help: "Per-account sync outcomes",
			},
			[]string{"status", "level"},
		),

		RecordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_records_processed_total",
				Help: "Fact records transformed, validated and stored",
			},
			[]string{"level"},
		),

		RecordsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_records_dropped_total",
				Help: "Raw insight records dropped before storage",
			},
			[]string{"reason"},
		),

		QualityWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_quality_warnings_total",
				Help: "Non-blocking data quality warnings",
			},
			[]string{"code"},
		),

		CallBudgetWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_call_budget_waits_total",
				Help: "Times the hourly upstream call budget forced a wait",
			},
		),

		CallBudgetWaitTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_call_budget_wait_seconds_total",
				Help: "Seconds spent waiting for the hourly call budget to reset",
			},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		AggregationQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_aggregation_queries_total",
				Help: "Aggregation queries served",
			},
			[]string{"query_type"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Sync cycle metrics
func (m *Metrics) RecordSyncRun(status string, duration time.Duration) {
	m.SyncRunsTotal.WithLabelValues(status).Inc()
	m.SyncRunDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordAccountSync(status, level string) {
	m.AccountSyncsTotal.WithLabelValues(status, level).Inc()
}

func (m *Metrics) RecordRecordsProcessed(level string, count int) {
	m.RecordsProcessed.WithLabelValues(level).Add(float64(count))
}

func (m *Metrics) RecordRecordDropped(reason string) {
	m.RecordsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordQualityWarning(code string) {
	m.QualityWarnings.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordCallBudgetWait(wait time.Duration) {
	m.CallBudgetWaits.Inc()
	m.CallBudgetWaitTotal.Add(wait.Seconds())
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

func (m *Metrics) RecordAggregationQuery(queryType string) {
	m.AggregationQueries.WithLabelValues(queryType).Inc()
}

func (m *Metrics) IncSyncRunsInProgress() {
	m.SyncRunsInProgress.Inc()
}

func (m *Metrics) DecSyncRunsInProgress() {
	m.SyncRunsInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
