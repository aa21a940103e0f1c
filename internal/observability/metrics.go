// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lifecycle metrics
	MintsTotal      prometheus.Counter
	TransfersTotal  prometheus.Counter
	BurnsTotal      prometheus.Counter
	RejectionsTotal *prometheus.CounterVec

	// Stream metrics
	StreamOpsTotal  *prometheus.CounterVec
	LiveTokens      prometheus.Gauge
	EscrowedTotal   prometheus.Gauge
	OutgoingRateSum prometheus.Gauge

	// Collaborator metrics
	HostCallLatency   *prometheus.HistogramVec
	OracleReadLatency prometheus.Histogram
	HostCallErrors    *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulAudit prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "flow_vault"
	}

	return &Metrics{
		// Lifecycle metrics
		MintsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "mints_total",
			Help:      "Total number of successful mints",
		}),
		TransfersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transfers_total",
			Help:      "Total number of successful transfers",
		}),
		BurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "burns_total",
			Help:      "Total number of successful burns",
		}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "rejections_total",
			Help:      "Total number of rejected operations by reason",
		}, []string{"operation", "reason"}),

		// Stream metrics
		StreamOpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ops_total",
			Help:      "Total number of stream host mutations by kind",
		}, []string{"kind"}),
		LiveTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "live_tokens",
			Help:      "Number of currently minted, unburned tokens",
		}),
		EscrowedTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "escrowed_deposits_total",
			Help:      "Sum of deposits currently held in escrow (native units)",
		}),
		OutgoingRateSum: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "outgoing_rate_sum",
			Help:      "Sum of flow rates across all live tokens (asset units per second)",
		}),

		// Collaborator metrics
		HostCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "call_latency_seconds",
			Help:      "Stream host call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		OracleReadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "read_latency_seconds",
			Help:      "Oracle price read latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		HostCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "call_errors_total",
			Help:      "Total number of stream host call errors by method",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulAudit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_audit_timestamp",
			Help:      "Unix timestamp of last successful invariant audit",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordMint increments the mint counter and adjusts the stream gauges.
func RecordMint(rate, deposit int64) {
	DefaultMetrics.MintsTotal.Inc()
	DefaultMetrics.LiveTokens.Inc()
	DefaultMetrics.EscrowedTotal.Add(float64(deposit))
	DefaultMetrics.OutgoingRateSum.Add(float64(rate))
}

// RecordTransfer increments the transfer counter.
func RecordTransfer() {
	DefaultMetrics.TransfersTotal.Inc()
}

// RecordBurn increments the burn counter and adjusts the stream gauges.
func RecordBurn(rate, deposit int64) {
	DefaultMetrics.BurnsTotal.Inc()
	DefaultMetrics.LiveTokens.Dec()
	DefaultMetrics.EscrowedTotal.Sub(float64(deposit))
	DefaultMetrics.OutgoingRateSum.Sub(float64(rate))
}

// RecordRejection records a rejected operation.
func RecordRejection(operation, reason string) {
	DefaultMetrics.RejectionsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordStreamOp records a stream host mutation.
func RecordStreamOp(kind string) {
	DefaultMetrics.StreamOpsTotal.WithLabelValues(kind).Inc()
}

// RecordHostCall records stream host call metrics.
func RecordHostCall(method string, seconds float64, err error) {
	DefaultMetrics.HostCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.HostCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordOracleRead records oracle read latency.
func RecordOracleRead(seconds float64) {
	DefaultMetrics.OracleReadLatency.Observe(seconds)
}

// TickUptime adds one second of process uptime.
func TickUptime() {
	DefaultMetrics.UptimeSeconds.Inc()
}

// MarkAuditSuccess records the time of a successful invariant audit.
func MarkAuditSuccess() {
	DefaultMetrics.LastSuccessfulAudit.SetToCurrentTime()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
