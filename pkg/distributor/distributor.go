package distributor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/checkers"
	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/log"
	"github.com/cuemby/stratum/pkg/merge"
	"github.com/cuemby/stratum/pkg/metrics"
	"github.com/cuemby/stratum/pkg/topology"
	"github.com/cuemby/stratum/pkg/types"
)

// StateProvider supplies the immutable Distribution/ClusterStateBundle
// snapshot pair the distributor reasons over on a given tick. Both the
// controller publishing new snapshots and this distributor reading them
// happen concurrently with no shared mutable state (spec.md §4.4).
type StateProvider interface {
	Distribution() topology.Distribution
	Bundle() clusterstate.Bundle
}

// Executor carries out a non-merge maintenance Operation (split, join,
// delete, activate, garbage-collect) against the bucket-database
// storage engine, an external collaborator out of scope for this
// module (spec.md §1). Execution is asynchronous and fire-and-forget
// from the distributor's point of view, mirroring merge.Persistence.
type Executor interface {
	Execute(op checkers.Operation)
}

// spaces is the fixed, small set of bucket spaces a tick scans.
var spaces = [2]bucket.Space{bucket.SpaceDefault, bucket.SpaceGlobal}

// Distributor runs the state-checker pipeline against every entry in
// the bucket database once per tick, on a single goroutine, and hands
// the winning operation off to the MergeThrottler or an Executor
// (spec.md §5: "StateCheckers execute on this thread; they never block
// on I/O").
type Distributor struct {
	selfIndex uint16
	db        bucket.DB
	state     StateProvider
	pipeline  checkers.Pipeline
	throttler *merge.Throttler
	executor  Executor

	config     checkers.Config
	redundancy int
	upStates   types.UseCase
	oracle     checkers.ConsistencyOracle
	shouldGC   func(bucket.ID, time.Time, int64) bool
	features   types.FeatureRepo

	logger   zerolog.Logger
	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// Option configures optional Distributor fields beyond the required
// constructor arguments.
type Option func(*Distributor)

// WithTickInterval overrides the default tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(dist *Distributor) { dist.interval = d }
}

// WithOracle installs a ConsistencyOracle for SetBucketState's
// majority-consistent-bucket-info inhibitor (spec.md §4.3.6).
func WithOracle(oracle checkers.ConsistencyOracle) Option {
	return func(dist *Distributor) { dist.oracle = oracle }
}

// WithGCPolicy installs the pluggable garbage-collection-due predicate
// (spec.md §4.3.7).
func WithGCPolicy(fn func(bucket.ID, time.Time, int64) bool) Option {
	return func(dist *Distributor) { dist.shouldGC = fn }
}

// WithFeatures installs the per-node capability repo SetBucketState
// consults for the no_implicit_indexing_of_active_buckets inhibitor
// exception (spec.md §4.3.6).
func WithFeatures(features types.FeatureRepo) Option {
	return func(dist *Distributor) { dist.features = features }
}

// New builds a Distributor. selfIndex is this storage node's own index,
// used to decide whether a scheduled merge executes locally or forwards
// (spec.md §4.2).
func New(selfIndex uint16, db bucket.DB, state StateProvider, throttler *merge.Throttler, executor Executor, config checkers.Config, redundancy int, opts ...Option) *Distributor {
	dist := &Distributor{
		selfIndex:  selfIndex,
		db:         db,
		state:      state,
		pipeline:   checkers.DefaultPipeline(),
		throttler:  throttler,
		executor:   executor,
		config:     config,
		redundancy: redundancy,
		upStates:   types.UpStatesUpInit,
		logger:     log.WithNode(types.NodeTypeStorage.String(), selfIndex),
		interval:   time.Second,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(dist)
	}
	return dist
}

// Start begins the tick loop on a new goroutine.
func (d *Distributor) Start() {
	go d.run()
}

// Stop halts the tick loop.
func (d *Distributor) Stop() {
	close(d.stopCh)
}

func (d *Distributor) run() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info().Msg("distributor started")

	for {
		select {
		case <-ticker.C:
			d.Tick()
		case <-d.stopCh:
			d.logger.Info().Msg("distributor stopped")
			return
		}
	}
}

// Tick runs one full bucket-database scan: every entry in every space
// is evaluated against the checker pipeline, and any scheduled
// operation is dispatched.
func (d *Distributor) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	bundle := d.state.Bundle()
	distribution := d.state.Distribution()
	d.throttler.SetSystemState(bundle.Version())

	for _, space := range spaces {
		cs := bundle.ForSpace(space.String())
		d.db.ForEach(space, func(entry bucket.Entry) bool {
			d.evaluate(space, entry, cs, distribution, bundle.Version())
			return true
		})
	}
}

// evaluate builds the checker Context for one entry and dispatches its
// result, if any. version is the replicated cluster-state bundle's
// version as of this tick, threaded through to the merge command so
// Throttler.SetSystemState's version monotonicity (spec.md §4.2's
// invariant P5) is exercised on the real dispatch path.
func (d *Distributor) evaluate(space bucket.Space, entry bucket.Entry, cs clusterstate.ClusterState, distribution topology.Distribution, version uint32) {
	idealTimer := metrics.NewTimer()
	ideal, err := topology.IdealNodes(distribution, cs, entry.ID, types.NodeTypeStorage, d.upStates, d.redundancy)
	idealTimer.ObserveDuration(metrics.IdealNodesDuration)
	if err != nil {
		d.logger.Debug().
			Str("bucket_id", entry.ID.String()).
			Err(err).
			Msg("skipping entry: ideal-node placement failed")
		return
	}

	ctx := checkers.Context{
		Space:             space,
		Entry:             entry,
		InconsistentGroup: d.inconsistentGroup(space, entry),
		IdealNodes:        ideal,
		ClusterState:      cs,
		Distribution:      distribution,
		Redundancy:        d.redundancy,
		Config:            d.config,
		Now:               time.Now(),
		Features:          d.features,
		DB:                d.db,
		Oracle:            d.oracle,
		ShouldGC:          d.shouldGC,
	}

	result := d.pipeline.Run(ctx)
	if !result.HasOperation {
		return
	}
	d.dispatch(result.Operation, result.Priority, version)
}

// inconsistentGroup finds every other entry in the DB covering an
// overlapping key range at a different split level (spec.md §4.3.3).
func (d *Distributor) inconsistentGroup(space bucket.Space, entry bucket.Entry) []bucket.Entry {
	var group []bucket.Entry
	d.db.ForEach(space, func(other bucket.Entry) bool {
		if other.ID == entry.ID {
			return true
		}
		if entry.ID.Contains(other.ID) || other.ID.Contains(entry.ID) {
			group = append(group, other)
		}
		return true
	})
	return group
}

// dispatch hands a scheduled operation off to the MergeThrottler (for
// MergeBucket) or the Executor (everything else). version is the
// cluster-state version in effect when the operation was scheduled.
func (d *Distributor) dispatch(op checkers.Operation, priority checkers.SchedulePriority, version uint32) {
	logger := d.logger.With().
		Str("bucket_id", op.BucketID.String()).
		Str("operation", string(op.Type)).
		Str("reason", op.Reason).
		Logger()

	if op.Type != checkers.OpMergeBucket {
		logger.Info().Msg("dispatching maintenance operation")
		if d.executor != nil {
			d.executor.Execute(op)
		}
		return
	}

	logger.Info().Msg("dispatching merge operation")
	cmd := mergeCommand(op, priority, version)
	d.throttler.Receive(cmd, func(reply merge.Reply) {
		if reply.Code != merge.ReplyOK {
			logger.Warn().
				Str("reply", reply.Code.String()).
				Str("reply_reason", reply.Reason).
				Msg("merge did not complete cleanly")
		}
	})
}

// mergeCommand converts a SynchronizeAndMove Operation into a
// MergeBucketCommand. Nodes scheduled for the merge become regular
// participants; source buckets are not separately represented here
// since the scheduling checker already folded them into Operation.Nodes.
// The cluster-state version travels with the command so the throttler
// can bounce it with WrongDistribution once it goes stale (spec.md
// §4.2), and the checker-assigned priority orders it against
// concurrently queued merges.
func mergeCommand(op checkers.Operation, priority checkers.SchedulePriority, version uint32) merge.Command {
	nodes := make([]merge.NodeRef, 0, len(op.Nodes))
	for _, idx := range op.Nodes {
		nodes = append(nodes, merge.NodeRef{Index: idx})
	}
	return merge.Command{
		BucketID:            op.BucketID,
		Nodes:               nodes,
		ClusterStateVersion: version,
		Priority:            uint8(priority),
	}
}
