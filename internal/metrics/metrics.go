package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Billing server metrics collectors
var (
	// Ledger

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_ledger_operations_total",
			Help: "Total number of ledger operations by outcome",
		},
		[]string{"operation", "status"},
	)

	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gc_ledger_operation_duration_seconds",
			Help:    "Ledger operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	SessionsSettledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_sessions_settled_total",
			Help: "Total number of sessions that reached a terminal state",
		},
		[]string{"status"},
	)

	BilledMinutesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_billed_minutes_total",
			Help: "Total number of minutes billed on closed sessions",
		},
	)

	BilledAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_billed_amount_total",
			Help: "Total amount billed on closed sessions, in the configured currency",
		},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_payments_total",
			Help: "Total number of payments recorded",
		},
		[]string{"method"},
	)

	PaymentsAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_payments_amount_total",
			Help: "Total amount received, in the configured currency",
		},
		[]string{"method"},
	)

	// State gauges, refreshed by the Collector

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gc_active_sessions",
			Help: "Current number of active sessions",
		},
	)

	OverdueSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gc_overdue_sessions",
			Help: "Active sessions running longer than the configured maximum session duration",
		},
	)

	ComputersTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gc_computers_total",
			Help: "Number of registered computers by status",
		},
		[]string{"status"},
	)

	DBConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gc_db_connections",
			Help: "Number of open database connections",
		},
	)

	ComputersMarkedOfflineTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_computers_marked_offline_total",
			Help: "Total number of computers marked offline after missing heartbeats",
		},
	)

	// Events

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gc_event_subscribers",
			Help: "Current number of connected event stream clients",
		},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_events_dropped_total",
			Help: "Events dropped because a subscriber was too slow",
		},
	)

	// HTTP

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)
