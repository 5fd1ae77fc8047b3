package merge

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/log"
	"github.com/cuemby/stratum/pkg/metrics"
)

// Forwarder delivers a Command to another storage node and eventually
// calls onReply with that node's answer. Transport is out of scope
// (spec.md §1); this is the injection seam a real gRPC client
// satisfies.
type Forwarder interface {
	Forward(nodeIndex uint16, cmd Command, onReply func(Reply))
}

// Persistence executes a merge locally once this node is the chain's
// executor, and eventually calls onDone with the outcome. Persistence
// is an external collaborator (spec.md §1); this is its seam.
type Persistence interface {
	Execute(cmd Command, onDone func(Reply))
}

const defaultBackpressureWindow = 15 * time.Second

// activeMerge is one merge currently occupying an active-set slot.
type activeMerge struct {
	cmd       Command
	onReply   func(Reply)
	started   time.Time
	executing bool
}

// Throttler is the MergeThrottler (spec.md §4.2): it admits, forwards,
// executes, and queues MergeBucketCommands for one storage node,
// bounding how many merges that node participates in concurrently.
//
// Concurrency shape grounded on pkg/reconciler/reconciler.go's single
// mutex guarding a small piece of shared state, with all
// forwarding/execution happening outside the lock via injected
// collaborators.
type Throttler struct {
	selfIndex uint16

	forwarder   Forwarder
	persistence Persistence

	maxActive          int
	maxQueueLen        int
	backpressureWindow time.Duration

	mu                sync.Mutex
	clusterVersion    uint32
	active            map[bucket.ID]*activeMerge
	queue             pendingQueue
	nextArrival       uint64
	backpressureUntil time.Time

	logger zerolog.Logger
}

// New creates a Throttler for the storage node at selfIndex.
func New(selfIndex uint16, maxActive, maxQueueLen int, forwarder Forwarder, persistence Persistence) *Throttler {
	t := &Throttler{
		selfIndex:          selfIndex,
		forwarder:          forwarder,
		persistence:        persistence,
		maxActive:          maxActive,
		maxQueueLen:        maxQueueLen,
		backpressureWindow: defaultBackpressureWindow,
		active:             make(map[bucket.ID]*activeMerge),
		logger:             log.WithComponent("merge-throttler"),
	}
	heap.Init(&t.queue)
	return t
}

// SetSystemState updates the cluster-state version the throttler
// admits merges against. Per spec.md §4.2, any merge already active or
// queued for a version other than the new one is flushed with
// WrongDistribution; a
// merge carrying ClusterStateVersion == 0 is treated as version-
// agnostic and is never flushed by a version change (legacy
// compatibility path — see DESIGN.md open question 3).
func (t *Throttler) SetSystemState(version uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version == t.clusterVersion {
		return
	}
	t.clusterVersion = version
	t.flushStaleLocked()
}

func (t *Throttler) flushStaleLocked() {
	for id, m := range t.active {
		if m.cmd.ClusterStateVersion == 0 || m.cmd.ClusterStateVersion == t.clusterVersion {
			continue
		}
		delete(t.active, id)
		t.replyAsync(m.onReply, Reply{Code: ReplyWrongDistribution, ClusterStateVersion: t.clusterVersion, Reason: "cluster state changed"})
	}

	var kept pendingQueue
	for _, item := range t.queue {
		if item.cmd.ClusterStateVersion == 0 || item.cmd.ClusterStateVersion == t.clusterVersion {
			kept = append(kept, item)
			continue
		}
		t.replyAsync(item.onReply, Reply{Code: ReplyWrongDistribution, ClusterStateVersion: t.clusterVersion, Reason: "cluster state changed"})
	}
	t.queue = kept
	heap.Init(&t.queue)
	t.promoteLocked()
}

// Receive is the throttler's single entry point: a MergeBucketCommand
// arriving at this node, either freshly issued or forwarded along the
// chain. onReply is called exactly once, synchronously or later.
func (t *Throttler) Receive(cmd Command, onReply func(Reply)) {
	t.mu.Lock()

	if cmd.ClusterStateVersion != 0 && t.clusterVersion != 0 && cmd.ClusterStateVersion < t.clusterVersion {
		t.mu.Unlock()
		t.replyAsync(onReply, Reply{Code: ReplyWrongDistribution, ClusterStateVersion: t.clusterVersion, Reason: "stale cluster state version"})
		return
	}

	sourceOnly := cmd.sourceOnlyAt(t.selfIndex)
	if !sourceOnly && !time.Now().After(t.backpressureUntil) {
		t.mu.Unlock()
		metrics.MergeBackpressureBounces.Inc()
		t.logger.Debug().Str("bucket_id", cmd.BucketID.String()).Msg("bounced merge, backpressure window active")
		t.replyAsync(onReply, Reply{Code: ReplyBusy, Reason: "backpressure window active"})
		return
	}

	if !cmd.containsIndex(t.selfIndex) {
		t.mu.Unlock()
		t.replyAsync(onReply, Reply{Code: ReplyRejected, Reason: "node not a participant in this merge"})
		return
	}

	if existing, ok := t.active[cmd.BucketID]; ok {
		if existing.cmd.sameCycle(cmd) {
			t.mu.Unlock()
			metrics.MergeDuplicateResends.Inc()
			t.replyAsync(onReply, Reply{Code: ReplyBusy, Reason: "duplicate resend of an already-active merge"})
			return
		}
		if len(t.queue) >= t.maxQueueLen {
			t.mu.Unlock()
			t.replyAsync(onReply, Reply{Code: ReplyBusy, Reason: "bucket busy and queue full"})
			return
		}
		t.enqueueLocked(cmd, onReply)
		t.mu.Unlock()
		return
	}

	if len(t.active) >= t.maxActive {
		if len(t.queue) >= t.maxQueueLen {
			t.mu.Unlock()
			t.replyAsync(onReply, Reply{Code: ReplyBusy, Reason: "active-set full and queue full"})
			return
		}
		t.enqueueLocked(cmd, onReply)
		t.mu.Unlock()
		return
	}

	t.admitLocked(cmd, onReply)
	t.mu.Unlock()
}

func (t *Throttler) enqueueLocked(cmd Command, onReply func(Reply)) {
	heap.Push(&t.queue, &queueItem{cmd: cmd, onReply: onReply, arrival: t.nextArrival})
	t.nextArrival++
}

// admitLocked inserts cmd into the active set and dispatches it
// (executes locally, or forwards to the next hop), without holding the
// lock across the actual I/O.
func (t *Throttler) admitLocked(cmd Command, onReply func(Reply)) {
	m := &activeMerge{cmd: cmd, onReply: onReply, started: time.Now()}
	t.active[cmd.BucketID] = m

	executor := cmd.isExecutorAt(t.selfIndex)
	m.executing = executor

	go t.dispatch(cmd, executor)
}

func (t *Throttler) dispatch(cmd Command, executor bool) {
	if executor {
		metrics.MergeExecutionsTotal.Inc()
		t.logger.Debug().Str("bucket_id", cmd.BucketID.String()).Msg("executing merge locally as chain terminus")
		t.persistence.Execute(cmd, func(reply Reply) {
			t.complete(cmd.BucketID, reply)
		})
		return
	}

	next, ok := cmd.nextHop(t.selfIndex)
	if !ok {
		t.complete(cmd.BucketID, Reply{Code: ReplyRejected, Reason: "no next hop and not executor"})
		return
	}
	metrics.MergeForwardsTotal.Inc()
	t.logger.Debug().Str("bucket_id", cmd.BucketID.String()).Uint16("next_hop", next).Msg("forwarding merge")
	forwarded := cmd.withAppendedChain(t.selfIndex)
	t.forwarder.Forward(next, forwarded, func(reply Reply) {
		t.complete(cmd.BucketID, reply)
	})
}

// complete removes a merge from the active set, promotes a queued
// merge into its place if one is waiting, and answers the original
// caller.
func (t *Throttler) complete(id bucket.ID, reply Reply) {
	t.mu.Lock()
	m, ok := t.active[id]
	if ok {
		delete(t.active, id)
		metrics.MergeDuration.Observe(time.Since(m.started).Seconds())
	}
	t.promoteLocked()
	t.mu.Unlock()

	if ok {
		metrics.MergeRepliesTotal.WithLabelValues(reply.Code.String()).Inc()
		t.replyAsync(m.onReply, reply)
	}
}

// promoteLocked admits as many queued merges as there is room for in
// the active set. Must be called with t.mu held.
func (t *Throttler) promoteLocked() {
	for len(t.active) < t.maxActive && t.queue.Len() > 0 {
		item := heap.Pop(&t.queue).(*queueItem)
		if _, busy := t.active[item.cmd.BucketID]; busy {
			// Another merge for the same bucket was admitted in the
			// meantime (e.g. a resend raced the queue); requeue.
			heap.Push(&t.queue, item)
			break
		}
		t.admitLocked(item.cmd, item.onReply)
	}
}

// ApplyBackpressure opens a window during which non-source-only
// merges are bounced with Busy, per spec.md §4.2's backpressure
// invariant, and immediately drains the pending queue by answering
// every queued merge with Busy. Source-only participation always
// bypasses backpressure, since it contributes data without occupying
// a target slot.
func (t *Throttler) ApplyBackpressure(d time.Duration) {
	t.mu.Lock()
	until := time.Now().Add(d)
	if until.After(t.backpressureUntil) {
		t.backpressureUntil = until
	}
	queued := t.queue
	t.queue = nil
	t.mu.Unlock()

	for _, item := range queued {
		t.replyAsync(item.onReply, Reply{Code: ReplyBusy, Reason: "backpressure window active"})
	}
}

// Flush aborts every active and queued merge, answering each with
// Aborted. Used when this node is leaving the cluster or the bucket
// database is being closed.
func (t *Throttler) Flush() {
	t.mu.Lock()
	active := t.active
	t.active = make(map[bucket.ID]*activeMerge)
	queued := t.queue
	t.queue = nil
	t.mu.Unlock()

	t.logger.Info().Int("active", len(active)).Int("queued", len(queued)).Msg("flushing merge throttler")

	for _, m := range active {
		t.replyAsync(m.onReply, Reply{Code: ReplyAborted, Reason: "flushed"})
	}
	for _, item := range queued {
		t.replyAsync(item.onReply, Reply{Code: ReplyAborted, Reason: "flushed"})
	}
}

// ActiveCount reports how many active-set slots are currently
// occupied (for metrics.Collector).
func (t *Throttler) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// QueueLength reports how many merges are currently queued (for
// metrics.Collector).
func (t *Throttler) QueueLength() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Len()
}

func (t *Throttler) replyAsync(onReply func(Reply), reply Reply) {
	if onReply == nil {
		return
	}
	onReply(reply)
}
