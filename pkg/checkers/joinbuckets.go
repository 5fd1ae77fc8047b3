package checkers

import "github.com/cuemby/stratum/pkg/bucket"

// JoinBuckets implements spec.md §4.3.2: merge a bucket back together
// with its sibling, or fold a single child up into its parent, once
// it's small enough and legal to do so.
type JoinBuckets struct{}

func (JoinBuckets) Name() string { return "JoinBuckets" }

func (JoinBuckets) Check(ctx Context) Result {
	id := ctx.Entry.ID
	nodeCount := len(ctx.Entry.Copies)

	if nodeCount == 0 || nodeCount > ctx.Redundancy {
		return NoMaintenance()
	}
	if ctx.Config.JoinByteSize == 0 && ctx.Config.JoinCount == 0 {
		return NoMaintenance()
	}
	if id.UsedBits <= minLegalJoinBits(ctx) {
		return NoMaintenance()
	}
	if ctx.Entry.RecentlyCreatedEmptyCopy {
		return NoMaintenance()
	}

	if result, ok := trySiblingJoin(ctx); ok {
		return result
	}
	if result, ok := trySingleBucketJoin(ctx); ok {
		return result
	}
	return NoMaintenance()
}

func minLegalJoinBits(ctx Context) uint8 {
	bits := ctx.ClusterState.DistributionBits()
	if ctx.Config.MinimalSplitBits > bits {
		bits = ctx.Config.MinimalSplitBits
	}
	return bits
}

// trySiblingJoin implements the two-sibling join path: id must be the
// "first" sibling, the sibling must exist with a matching node set (or
// inconsistent joins are enabled and both sides match the ideal set),
// and the combined size must stay under the join thresholds.
func trySiblingJoin(ctx Context) (Result, bool) {
	id := ctx.Entry.ID
	if !id.IsSiblingFirst() {
		return Result{}, false
	}

	sibling, ok := ctx.DB.Get(ctx.Space, id.Sibling())
	if !ok {
		return Result{}, false
	}

	sameNodes := sameNodeSet(ctx.Entry.NodeIndices(), sibling.NodeIndices())
	if !sameNodes {
		if !ctx.Config.EnableInconsistentJoin {
			return Result{}, false
		}
		ideal := ctx.idealSet()
		if !nodeSetSubsetOfIdeal(ctx.Entry.NodeIndices(), ideal) || !nodeSetSubsetOfIdeal(sibling.NodeIndices(), ideal) {
			return Result{}, false
		}
	}

	combinedFileSize := ctx.Entry.HighestUsedFileSize() + sibling.HighestUsedFileSize()
	combinedMetaCount := ctx.Entry.HighestMetaCount() + sibling.HighestMetaCount()
	if !(combinedFileSize < ctx.Config.JoinByteSize && combinedMetaCount < ctx.Config.JoinCount) {
		return Result{}, false
	}

	target := id.Parent()
	op := newOperation(OpJoinBuckets, ctx.Space, target)
	op.SourceBucketIDs = []bucket.ID{id, sibling.ID}
	op.Reason = "sibling pair small enough to join"
	return StoredResult(op, PriorityMedium), true
}

// trySingleBucketJoin folds a bucket that is its parent's only child in
// the tree up to the highest such ancestor (see joinTarget), when
// enabled by config.
func trySingleBucketJoin(ctx Context) (Result, bool) {
	if !ctx.Config.EnableSingleBucketJoin {
		return Result{}, false
	}
	target, ok := joinTarget(ctx, ctx.Entry.ID)
	if !ok {
		return Result{}, false
	}
	op := newOperation(OpJoinBuckets, ctx.Space, target)
	op.SourceBucketIDs = []bucket.ID{ctx.Entry.ID}
	op.Reason = "single child folded up the bucket tree"
	return StoredResult(op, PriorityVeryLow), true
}

// joinTarget walks up from id one bit at a time while the parent has
// only one child in the database and the split level stays legal
// (spec.md §4.3.2).
func joinTarget(ctx Context, id bucket.ID) (bucket.ID, bool) {
	current := id
	minBits := minLegalJoinBits(ctx)
	for current.UsedBits > 1 {
		parent := current.Parent()
		if parent.UsedBits <= minBits {
			break
		}
		if ctx.DB.ChildCount(ctx.Space, parent) != 1 {
			break
		}
		current = parent
	}
	if current == id {
		return bucket.ID{}, false
	}
	return current, true
}

func sameNodeSet(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uint16]bool, len(a))
	for _, n := range a {
		seen[n] = true
	}
	for _, n := range b {
		if !seen[n] {
			return false
		}
	}
	return true
}

func nodeSetSubsetOfIdeal(nodes []uint16, ideal map[uint16]bool) bool {
	for _, n := range nodes {
		if !ideal[n] {
			return false
		}
	}
	return true
}
