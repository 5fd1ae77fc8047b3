// Package checkers implements the StateChecker pipeline (spec.md
// §4.3): a fixed, ordered sequence of bucket-maintenance checks, the
// first of which to find something to do wins for that bucket on that
// tick.
package checkers

import (
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/topology"
	"github.com/cuemby/stratum/pkg/types"
)

// SchedulePriority orders competing maintenance operations; the
// highest priority wins across checkers for a given bucket (spec.md
// §4.3).
type SchedulePriority int

const (
	PriorityVeryLow SchedulePriority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
	PriorityHighest
)

func (p SchedulePriority) String() string {
	switch p {
	case PriorityVeryLow:
		return "VeryLow"
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityVeryHigh:
		return "VeryHigh"
	case PriorityHighest:
		return "Highest"
	default:
		return "Unknown"
	}
}

// OperationType names the kind of maintenance operation a checker
// scheduled.
type OperationType string

const (
	OpSplitBucket        OperationType = "SplitBucket"
	OpJoinBuckets         OperationType = "JoinBuckets"
	OpMergeBucket         OperationType = "MergeBucket"
	OpDeleteBucket        OperationType = "DeleteBucket"
	OpSetBucketState      OperationType = "SetBucketState"
	OpGarbageCollection   OperationType = "GarbageCollection"
)

// Operation is the maintenance action a checker wants carried out for
// one bucket.
type Operation struct {
	ID    uuid.UUID
	Type  OperationType
	Space bucket.Space

	// BucketID is the subject bucket. For JoinBuckets it is the *target*
	// (post-join) id; for SplitBucket the *source* id.
	BucketID bucket.ID

	// TargetUsedBits is meaningful for SplitBucket (the used-bits count
	// to split down to).
	TargetUsedBits uint8

	// SourceBucketIDs lists the bucket(s) being consumed — e.g. a
	// sibling pair or single child for JoinBuckets.
	SourceBucketIDs []bucket.ID

	// Nodes is the node set the operation touches: the merge/delete
	// participant set, or activate∪deactivate for SetBucketState.
	Nodes      []uint16
	Activate   []uint16
	Deactivate []uint16

	Reason string
}

// newOperation stamps a fresh operation ID, matching the teacher's
// uuid.New().String()-per-entity convention (adapted here to
// uuid.UUID since Operation.ID is never round-tripped through a
// string-keyed wire format the way Container.ID is).
func newOperation(t OperationType, space bucket.Space, id bucket.ID) Operation {
	return Operation{ID: uuid.New(), Type: t, Space: space, BucketID: id}
}

// Result is a checker's verdict: either NoMaintenance, or a scheduled
// Operation with its priority.
type Result struct {
	HasOperation bool
	Operation    Operation
	Priority     SchedulePriority
}

// NoMaintenance reports that a checker found nothing to do.
func NoMaintenance() Result { return Result{} }

// StoredResult reports that a checker scheduled op at the given
// priority.
func StoredResult(op Operation, priority SchedulePriority) Result {
	return Result{HasOperation: true, Operation: op, Priority: priority}
}

// ConsistencyOracle answers whether a candidate copy's info agrees
// with the cluster's "majority-consistent" view of a bucket, used by
// SetBucketState to avoid activating a copy that disagrees with the
// majority (spec.md §4.3.6; see DESIGN.md open question 2 for why this
// is pluggable rather than built in as persisted state).
type ConsistencyOracle interface {
	Agrees(space bucket.Space, id bucket.ID, leafGroup uint16, copy bucket.Copy) bool
}

// Config carries the tunables the checkers consult. Thresholds of 0
// mean "disabled" where the checker description calls that out
// explicitly (e.g. join size/count).
type Config struct {
	MinimalSplitBits uint8

	SplitByteThreshold      uint64
	SplitDocThreshold       uint32
	SplitMetaCountThreshold uint32
	SplitFileSizeThreshold  uint64

	JoinByteSize           uint64
	JoinCount              uint32
	EnableInconsistentJoin bool
	EnableSingleBucketJoin bool

	MergesDisabled     bool
	ActivationDisabled bool

	MaxActivationInhibitedOutOfSyncGroups int

	GCInterval time.Duration
}

// Context is everything a checker needs to evaluate one bucket.
// InconsistentGroup holds every other Entry the bucket database
// reports for the same logical bucket (spec.md §4.3.3): non-empty only
// when the tree is inconsistently split.
type Context struct {
	Space bucket.Space
	Entry bucket.Entry

	InconsistentGroup []bucket.Entry

	IdealNodes   []uint16
	ClusterState clusterstate.ClusterState
	Distribution topology.Distribution
	Redundancy   int

	Config Config
	Now    time.Time

	Features types.FeatureRepo
	DB       bucket.DB

	Oracle  ConsistencyOracle
	ShouldGC func(id bucket.ID, now time.Time, lastGCAt int64) bool
}

func (c Context) idealSet() map[uint16]bool {
	set := make(map[uint16]bool, len(c.IdealNodes))
	for _, n := range c.IdealNodes {
		set[n] = true
	}
	return set
}

// anyIdealNodeInState reports whether any ideal storage node's current
// state matches one of states.
func (c Context) anyIdealNodeInState(states ...types.State) bool {
	for _, idx := range c.IdealNodes {
		ns := c.ClusterState.NodeState(types.Node{Type: types.NodeTypeStorage, Index: idx})
		for _, s := range states {
			if ns.State == s {
				return true
			}
		}
	}
	return false
}

// anyIdealNodeOutsideMergeableStates reports whether any ideal storage
// node's state is outside {Up, Initializing, Retired} — spec.md
// §4.3.4's "in a pending cluster-state change" condition (see
// DESIGN.md open question 5).
func (c Context) anyIdealNodeOutsideMergeableStates() bool {
	for _, idx := range c.IdealNodes {
		ns := c.ClusterState.NodeState(types.Node{Type: types.NodeTypeStorage, Index: idx})
		switch ns.State {
		case types.StateUp, types.StateInitializing, types.StateRetired:
			continue
		default:
			return true
		}
	}
	return false
}

// StateChecker evaluates one bucket and either schedules a maintenance
// operation or reports NoMaintenance.
type StateChecker interface {
	Name() string
	Check(ctx Context) Result
}
