package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// Every helper is safe to call on a nil *Metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRateLimitHits     *prometheus.CounterVec
	solanaRPCRetries           *prometheus.CounterVec
	solanaRPCRetryExhausted    *prometheus.CounterVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Retrieval Metrics
	pagesFetchedTotal       *prometheus.CounterVec
	transactionsStreamed    *prometheus.CounterVec
	transactionsDiscarded   *prometheus.CounterVec
	truncatedRetrievalTotal *prometheus.CounterVec

	// Analysis Metrics
	analysisDuration    *prometheus.HistogramVec
	analysisRunsTotal   *prometheus.CounterVec
	mintsDiscoveredHist *prometheus.HistogramVec

	// Workflow Metrics
	refreshWorkflowDuration *prometheus.HistogramVec
	refreshActivityDuration *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		solanaRPCRetryExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retry_exhausted_total",
				Help: "Total number of RPC operations that failed after all attempts",
			},
			[]string{"method"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{1, 10, 20, 50, 100, 250, 500, 1000},
			},
			[]string{"endpoint"},
		),

		// Retrieval Metrics
		pagesFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_pages_fetched_total",
				Help: "Total number of signature pages fetched by the history cursor",
			},
			[]string{"mode"},
		),
		transactionsStreamed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_transactions_streamed_total",
				Help: "Total number of transactions delivered to reducers",
			},
			[]string{"mode"},
		),
		transactionsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_transactions_discarded_total",
				Help: "Total number of transactions dropped before reduction",
			},
			[]string{"mode", "reason"},
		),
		truncatedRetrievalTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_truncated_total",
				Help: "Total number of retrievals stopped by the page cap",
			},
			[]string{"mode"},
		),

		// Analysis Metrics
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_duration_seconds",
				Help:    "Duration of wallet analyses in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		analysisRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_runs_total",
				Help: "Total number of wallet analyses by kind and status",
			},
			[]string{"kind", "status"},
		),
		mintsDiscoveredHist: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_mints_discovered",
				Help:    "Number of distinct mints reported per mint activity analysis",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"filtered"},
		),

		// Workflow Metrics
		refreshWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refresh_workflow_duration_seconds",
				Help:    "Duration of latest-mints refresh workflow executions in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		refreshActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refresh_activity_duration_seconds",
				Help:    "Duration of refresh workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"activity", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"kind", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	if m == nil {
		return
	}
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordRPCRetryExhausted records an operation that failed on every attempt.
func (m *Metrics) RecordRPCRetryExhausted(method string) {
	if m == nil {
		return
	}
	m.solanaRPCRetryExhausted.WithLabelValues(method).Inc()
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	if m == nil {
		return
	}
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Retrieval metric helpers

// RecordPageFetched records one signature page pulled by the cursor.
func (m *Metrics) RecordPageFetched(mode string) {
	if m == nil {
		return
	}
	m.pagesFetchedTotal.WithLabelValues(mode).Inc()
}

// RecordTransactionStreamed records a transaction handed to a reducer.
func (m *Metrics) RecordTransactionStreamed(mode string) {
	if m == nil {
		return
	}
	m.transactionsStreamed.WithLabelValues(mode).Inc()
}

// RecordTransactionsDiscarded records transactions dropped before reduction.
// Reason is one of "missing_body", "missing_block_time" or "out_of_window".
func (m *Metrics) RecordTransactionsDiscarded(mode, reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.transactionsDiscarded.WithLabelValues(mode, reason).Add(float64(count))
}

// RecordTruncatedRetrieval records a retrieval that hit the page cap.
func (m *Metrics) RecordTruncatedRetrieval(mode string) {
	if m == nil {
		return
	}
	m.truncatedRetrievalTotal.WithLabelValues(mode).Inc()
}

// Analysis metric helpers

// RecordAnalysis records a completed analysis run.
func (m *Metrics) RecordAnalysis(kind string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.analysisDuration.WithLabelValues(kind).Observe(duration)
	m.analysisRunsTotal.WithLabelValues(kind, status).Inc()
}

// RecordMintsDiscovered records the size of a mint activity report.
func (m *Metrics) RecordMintsDiscovered(filtered bool, count int) {
	if m == nil {
		return
	}
	label := "false"
	if filtered {
		label = "true"
	}
	m.mintsDiscoveredHist.WithLabelValues(label).Observe(float64(count))
}

// Workflow metric helpers

// RecordWorkflowDuration records refresh workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	if m == nil {
		return
	}
	m.refreshWorkflowDuration.WithLabelValues(status).Observe(duration)
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.refreshActivityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation for a report kind.
func (m *Metrics) RecordNATSPublish(kind, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(kind, status).Inc()
	m.natsPublishDuration.WithLabelValues(kind).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
