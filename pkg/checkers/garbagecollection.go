package checkers

import "github.com/cuemby/stratum/pkg/types"

// GarbageCollection implements spec.md §4.3.7: periodically invoke the
// pluggable document-expiry sweep for a bucket, gated by the configured
// interval and ideal-node readiness.
type GarbageCollection struct{}

func (GarbageCollection) Name() string { return "GarbageCollection" }

func (GarbageCollection) Check(ctx Context) Result {
	if ctx.Config.GCInterval == 0 {
		return NoMaintenance()
	}
	if len(ctx.IdealNodes) == 0 {
		return NoMaintenance()
	}
	if ctx.anyIdealNodeInState(types.StateMaintenance) {
		return NoMaintenance()
	}
	if ctx.ShouldGC == nil || !ctx.ShouldGC(ctx.Entry.ID, ctx.Now, ctx.Entry.LastGCTimestamp) {
		return NoMaintenance()
	}

	op := newOperation(OpGarbageCollection, ctx.Space, ctx.Entry.ID)
	op.Nodes = ctx.Entry.NodeIndices()
	op.Reason = "garbage collection interval elapsed"
	return StoredResult(op, PriorityVeryLow)
}
