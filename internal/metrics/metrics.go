package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks coordinated requests by method and outcome
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storekit_requests_total",
			Help: "Total number of coordinated API requests",
		},
		[]string{"method", "outcome"},
	)

	// RetriesTotal tracks retry attempts after a retryable failure
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storekit_retries_total",
			Help: "Total number of request retries",
		},
	)

	// EndpointRotationsTotal tracks adopted base URL changes from discovery
	EndpointRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storekit_endpoint_rotations_total",
			Help: "Total number of base URL changes adopted by endpoint discovery",
		},
	)

	// CacheHitsTotal tracks cache hits per tier (memory, durable)
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storekit_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"},
	)

	// CacheMissesTotal tracks lookups that found no fresh entry
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storekit_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// QueueDepth tracks the current number of buffered mutations
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storekit_queue_depth",
			Help: "Current number of mutations waiting for replay",
		},
	)

	// ReplaysTotal tracks queue replay attempts by result
	ReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storekit_replays_total",
			Help: "Total number of queued mutation replays",
		},
		[]string{"result"},
	)

	// ProbeFailuresTotal tracks failed health probes
	ProbeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storekit_probe_failures_total",
			Help: "Total number of failed health probes",
		},
	)
)
