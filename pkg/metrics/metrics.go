package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest metrics
	AnnouncementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_ingest_announcements_total",
			Help: "Total number of accepted new-file announcements",
		},
	)

	AnnouncementsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ingest_rejected_total",
			Help: "Total number of dropped announcements by reason",
		},
		[]string{"reason"},
	)

	// Index metrics
	IndexedObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_index_objects",
			Help: "Number of objects currently admitted to the index",
		},
	)

	IndexSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_index_snapshots_total",
			Help: "Total number of index snapshots served",
		},
	)

	// Arbiter metrics
	ClusterTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cluster_tasks_total",
			Help: "Total number of cluster tasks by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	HashCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_hash_cache_hits_total",
			Help: "Total number of hash lookups answered from the cache",
		},
	)

	PoolWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_pool_workers",
			Help: "Number of cluster pool workers by priority pattern",
		},
		[]string{"pattern"},
	)

	// Refresher metrics
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_sweep_duration_seconds",
			Help:    "Duration of full index sweeps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	SweepObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_sweep_objects",
			Help: "Number of objects seen by the most recent sweep",
		},
	)

	// Backend metrics
	BackendConversations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_backend_conversations_total",
			Help: "Total number of backend conversations by task",
		},
		[]string{"task"},
	)

	BackendFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_backend_frames_total",
			Help: "Total number of backend frames by direction and status",
		},
		[]string{"direction", "status"},
	)

	PushesDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_backend_pushes_discarded_total",
			Help: "New-file pushes drained while no backend was connected",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AnnouncementsTotal,
		AnnouncementsRejected,
		IndexedObjects,
		IndexSnapshots,
		ClusterTasks,
		HashCacheHits,
		PoolWorkers,
		SweepDuration,
		SweepObjects,
		BackendConversations,
		BackendFrames,
		PushesDiscarded,
	)
}

// Handler returns the HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
