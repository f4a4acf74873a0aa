// Package metrics holds the process-wide Prometheus collectors shared
// by the naming and storage daemons.
//
// Grounded on the small package-level prometheus.MustRegister block
// quay/claircore's locksource/pglock/metrics.go uses for its own lock
// operation counters; this package generalizes the same shape to the
// RPC, lock, and replication surfaces of this module.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RPCCalls counts every dispatched RPC call by method and outcome
	// ("ok" or "error").
	RPCCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distfs",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls dispatched by a skeleton, by method and outcome.",
	}, []string{"method", "outcome"})

	// RPCLatency observes dispatch latency by method.
	RPCLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "distfs",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "RPC call dispatch latency in seconds, by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// LockWait is a histogram of lock acquisition wait time, by mode.
	// It is registered, but internal/locktable records nothing into it.
	LockWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "distfs",
		Subsystem: "locktable",
		Name:      "wait_seconds",
		Help:      "Time spent waiting to acquire a path lock, by mode.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	// WorkerTasks counts replication/invalidation task completions by
	// kind and outcome.
	WorkerTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distfs",
		Subsystem: "coordinator",
		Name:      "worker_tasks_total",
		Help:      "Replication and invalidation tasks run, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// StorageBytes counts bytes read/written by a storage node.
	StorageBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distfs",
		Subsystem: "storage",
		Name:      "bytes_total",
		Help:      "Bytes moved through a storage node's read/write/copy paths.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(RPCCalls, RPCLatency, LockWait, WorkerTasks, StorageBytes)
}
