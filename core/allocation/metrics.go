package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal      *prometheus.CounterVec
	operationLatency     *prometheus.HistogramVec
	casConflicts         *prometheus.CounterVec
	notificationFailures prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter) {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_operations_total",
			Help: "Number of engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "allocation_operation_latency_seconds",
			Help:    "Latency of engine operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	cas := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_cas_conflicts_total",
			Help: "Number of versioned writes retried after a conflict",
		},
		[]string{"entity"},
	)
	nf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Number of failed notification channel deliveries",
		},
	)
	return ops, lat, cas, nf
}

func init() {
	operationsTotal, operationLatency, casConflicts, notificationFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(operationsTotal, operationLatency, casConflicts, notificationFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	operationsTotal, operationLatency, casConflicts, notificationFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// RecordNotificationFailure counts one failed notification delivery.
func RecordNotificationFailure() { notificationFailures.Inc() }

func conflictCounter(entity string) func() {
	return func() { casConflicts.WithLabelValues(entity).Inc() }
}
