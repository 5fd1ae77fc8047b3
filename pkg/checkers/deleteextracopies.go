package checkers

import (
	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/types"
)

// DeleteExtraCopies implements spec.md §4.3.5: remove copies the
// bucket no longer needs, either because the bucket holds no data at
// all, or because more copies exist than the redundancy requires.
type DeleteExtraCopies struct{}

func (DeleteExtraCopies) Name() string { return "DeleteExtraCopies" }

func (DeleteExtraCopies) Check(ctx Context) Result {
	if anyCopyInvalid(ctx.Entry) {
		return NoMaintenance()
	}
	if ctx.anyIdealNodeInState(types.StateMaintenance) {
		return NoMaintenance()
	}

	if ctx.Entry.HighestMetaCount() == 0 && !ctx.Entry.RecentlyCreatedEmptyCopy {
		op := newOperation(OpDeleteBucket, ctx.Space, ctx.Entry.ID)
		op.Nodes = ctx.Entry.NodeIndices()
		op.Reason = "bucket holds no data"
		return StoredResult(op, PriorityHigh)
	}

	if len(ctx.Entry.Copies) <= ctx.Redundancy {
		return NoMaintenance()
	}

	ideal := ctx.idealSet()
	var toDelete []uint16
	keptNonIdeal := 0

	for _, c := range ctx.Entry.Copies {
		if ideal[c.NodeIndex] {
			continue
		}
		if c.Empty {
			toDelete = append(toDelete, c.NodeIndex)
			continue
		}
		keptNonIdeal++
	}

	if entryInternallyConsistent(ctx.Entry, ideal) {
		idealHeld := 0
		for _, c := range ctx.Entry.Copies {
			if ideal[c.NodeIndex] {
				idealHeld++
			}
		}
		for _, c := range ctx.Entry.Copies {
			if ideal[c.NodeIndex] || c.Empty || c.Active {
				continue
			}
			if idealHeld+keptNonIdeal > ctx.Redundancy {
				toDelete = append(toDelete, c.NodeIndex)
				keptNonIdeal--
			}
		}
	}

	if len(toDelete) == 0 {
		return NoMaintenance()
	}

	op := newOperation(OpDeleteBucket, ctx.Space, ctx.Entry.ID)
	op.Nodes = toDelete
	op.Reason = "redundant non-ideal copies"
	return StoredResult(op, PriorityHigh)
}

func anyCopyInvalid(entry bucket.Entry) bool {
	for _, c := range entry.Copies {
		if !c.Valid {
			return true
		}
	}
	return false
}

func entryInternallyConsistent(entry bucket.Entry, ideal map[uint16]bool) bool {
	for i := range entry.Copies {
		for j := i + 1; j < len(entry.Copies); j++ {
			a, b := entry.Copies[i], entry.Copies[j]
			if !a.ConsistentWith(b, ideal[a.NodeIndex], ideal[b.NodeIndex]) {
				return false
			}
		}
	}
	return true
}
