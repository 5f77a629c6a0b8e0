// Package metrics defines Prometheus metrics for paramkeep.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paramkeep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramkeep_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramkeep_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "paramkeep_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	AuditQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramkeep_audit_queries_total",
			Help: "Audit queries by outcome (ok, invalid, error)",
		},
		[]string{"outcome"},
	)

	AuditQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paramkeep_audit_query_duration_seconds",
			Help:    "Audit query duration in seconds, including name resolution",
			Buckets: prometheus.DefBuckets,
		},
	)

	AuditWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paramkeep_audit_query_warnings_total",
			Help: "Warnings returned with successful audit queries",
		},
	)

	AuditPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramkeep_audit_pruned_total",
			Help: "Audit entries removed by the retention pruner",
		},
		[]string{"reason"},
	)

	AuditIngestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "paramkeep_audit_ingest_queue_depth",
			Help: "Current audit ingest queue depth",
		},
	)

	AuditIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramkeep_audit_ingested_total",
			Help: "Submitted audit entries by outcome: written, rejected or failed",
		},
		[]string{"outcome"},
	)

	ResolverLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramkeep_resolver_lookups_total",
			Help: "Name resolution cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal, WSConnections,
		AuditQueries, AuditQueryDuration, AuditWarnings,
		AuditPruned, AuditIngestQueueDepth, AuditIngested,
		ResolverLookups,
	)
}
