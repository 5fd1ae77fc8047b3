package metrics

import (
	"time"
)

// ClusterStateSource is the minimal view a Collector needs of the
// locally published cluster state (satisfied by *clusterctl.Controller;
// kept as a narrow interface here so pkg/metrics never imports
// pkg/clusterctl and stays usable from any component).
type ClusterStateSource interface {
	Version() uint32
	ForEachNode(fn func(nodeType string, index uint16, state string))
}

// BucketCountSource reports how many buckets the local bucket
// database currently tracks.
type BucketCountSource interface {
	BucketCount() (int, error)
}

// ThrottlerSource reports the MergeThrottler's current occupancy
// (satisfied by *merge.Throttler).
type ThrottlerSource interface {
	ActiveCount() int
	QueueLength() int
}

// RaftSource reports Raft leadership/log-position state (satisfied by
// *clusterctl.Controller).
type RaftSource interface {
	IsLeader() bool
	Stats() (lastLogIndex, appliedIndex uint64, peers int)
}

// Collector periodically samples the distributor's in-process state
// and republishes it as gauges. Grounded on the teacher's
// ticker-plus-stopCh Collector shape; generalized from manager-backed
// container/service counts to cluster-state/bucket/merge counts.
type Collector struct {
	clusterState ClusterStateSource
	buckets      BucketCountSource
	throttler    ThrottlerSource
	raft         RaftSource

	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a Collector. Any source may be nil; a nil
// source is simply skipped on each tick.
func NewCollector(cs ClusterStateSource, buckets BucketCountSource, throttler ThrottlerSource, raft RaftSource) *Collector {
	return &Collector{
		clusterState: cs,
		buckets:      buckets,
		throttler:    throttler,
		raft:         raft,
		interval:     15 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start begins collecting metrics on a ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectClusterStateMetrics()
	c.collectBucketMetrics()
	c.collectMergeMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectClusterStateMetrics() {
	if c.clusterState == nil {
		return
	}
	ClusterStateVersion.Set(float64(c.clusterState.Version()))

	counts := make(map[[2]string]int)
	c.clusterState.ForEachNode(func(nodeType string, index uint16, state string) {
		counts[[2]string{nodeType, state}]++
	})
	for key, count := range counts {
		NodesTotal.WithLabelValues(key[0], key[1]).Set(float64(count))
	}
}

func (c *Collector) collectBucketMetrics() {
	if c.buckets == nil {
		return
	}
	n, err := c.buckets.BucketCount()
	if err != nil {
		return
	}
	BucketsTotal.Set(float64(n))
}

func (c *Collector) collectMergeMetrics() {
	if c.throttler == nil {
		return
	}
	MergeActive.Set(float64(c.throttler.ActiveCount()))
	MergeQueued.Set(float64(c.throttler.QueueLength()))
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}
	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	lastIndex, appliedIndex, peers := c.raft.Stats()
	RaftLogIndex.Set(float64(lastIndex))
	RaftAppliedIndex.Set(float64(appliedIndex))
	RaftPeers.Set(float64(peers))
}
