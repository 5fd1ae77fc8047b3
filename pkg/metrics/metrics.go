package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratum_nodes_total",
			Help: "Total number of nodes by type and state",
		},
		[]string{"type", "state"},
	)

	ClusterStateVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_cluster_state_version",
			Help: "Cluster state version currently published by this node",
		},
	)

	BucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_buckets_total",
			Help: "Total number of buckets tracked in the local bucket database",
		},
	)

	// Raft metrics (pkg/clusterctl)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratum_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratum_raft_commit_duration_seconds",
			Help:    "Time taken to commit a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transport/API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_api_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratum_api_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Distributor reconciliation loop metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratum_reconciliation_duration_seconds",
			Help:    "Time taken for a distributor reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	IdealNodesDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratum_ideal_nodes_duration_seconds",
			Help:    "Time taken to compute ideal nodes for a bucket in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// State-checker pipeline metrics (pkg/checkers)
	CheckerInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_checker_invocations_total",
			Help: "Total number of state-checker pipeline invocations by checker name and outcome",
		},
		[]string{"checker", "outcome"},
	)

	CheckerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratum_checker_duration_seconds",
			Help:    "Time taken by a single state checker to evaluate a bucket, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"checker"},
	)

	OperationsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_operations_scheduled_total",
			Help: "Total number of maintenance operations scheduled by checker and priority",
		},
		[]string{"checker", "priority"},
	)

	// MergeThrottler metrics (pkg/merge)
	MergeActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_merge_active",
			Help: "Number of merges currently occupying an active-set slot",
		},
	)

	MergeQueued = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_merge_queued",
			Help: "Number of merges waiting in the pending queue",
		},
	)

	MergeRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_merge_replies_total",
			Help: "Total number of merge replies sent, by reply code",
		},
		[]string{"code"},
	)

	MergeForwardsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_merge_forwards_total",
			Help: "Total number of merge commands forwarded to the next hop in the chain",
		},
	)

	MergeExecutionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_merge_executions_total",
			Help: "Total number of merge commands executed locally as chain terminus",
		},
	)

	MergeBackpressureBounces = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_merge_backpressure_bounces_total",
			Help: "Total number of merges bounced with Busy due to an active backpressure window",
		},
	)

	MergeDuplicateResends = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_merge_duplicate_resends_total",
			Help: "Total number of bit-identical merge resends recognized against an already-active merge",
		},
	)

	MergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratum_merge_duration_seconds",
			Help:    "Time a merge spends occupying an active-set slot, from admission to completion, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		ClusterStateVersion,
		BucketsTotal,
		RaftLeader,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		RaftApplyDuration,
		RaftCommitDuration,
		APIRequestsTotal,
		APIRequestDuration,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		IdealNodesDuration,
		CheckerInvocationsTotal,
		CheckerDuration,
		OperationsScheduledTotal,
		MergeActive,
		MergeQueued,
		MergeRepliesTotal,
		MergeForwardsTotal,
		MergeExecutionsTotal,
		MergeBackpressureBounces,
		MergeDuplicateResends,
		MergeDuration,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
