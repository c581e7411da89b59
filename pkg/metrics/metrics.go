package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	PoolInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_pool_in_use",
			Help: "Instances currently held by callers, per resource",
		},
		[]string{"resource"},
	)

	PoolIdle = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_pool_idle",
			Help: "Idle instances available for acquisition, per resource",
		},
		[]string{"resource"},
	)

	PoolMaxSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_pool_max_size",
			Help: "Current maximum pool capacity, per resource",
		},
		[]string{"resource"},
	)

	AcquiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_acquires_total",
			Help: "Acquire attempts by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	AcquireDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_acquire_duration_seconds",
			Help:    "Time from acquire call to handle return",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"resource"},
	)

	InstancesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_instances_created_total",
			Help: "Instances created, per resource",
		},
		[]string{"resource"},
	)

	InstancesCleaned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_instances_cleaned_total",
			Help: "Instances cleaned up, per resource",
		},
		[]string{"resource"},
	)

	// Health metrics
	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_health_checks_total",
			Help: "Health checks by resource and resulting state",
		},
		[]string{"resource", "state"},
	)

	// Quarantine metrics
	QuarantineEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_quarantine_entries",
			Help: "Active quarantine entries",
		},
	)

	RecoveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_recovery_attempts_total",
			Help: "Quarantine recovery attempts by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	// Auto-scaler metrics
	ScaleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_scale_events_total",
			Help: "Auto-scaler actions by resource and direction",
		},
		[]string{"resource", "direction"},
	)

	// Event broker metrics
	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_events_dropped_total",
			Help: "Events shed by slow subscribers",
		},
	)
)

// init registers all metrics with the default registry
func init() {
	prometheus.MustRegister(
		PoolInUse,
		PoolIdle,
		PoolMaxSize,
		AcquiresTotal,
		AcquireDuration,
		InstancesCreated,
		InstancesCleaned,
		HealthChecksTotal,
		QuarantineEntries,
		RecoveryAttemptsTotal,
		ScaleEventsTotal,
		EventsDroppedTotal,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
