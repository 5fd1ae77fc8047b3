package checkers

import (
	"fmt"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/types"
)

// SynchronizeAndMove implements spec.md §4.3.4: schedule a merge that
// copies missing replicas onto ideal nodes, moves data off non-ideal
// nodes, and resynchronizes copies whose checksums disagree.
type SynchronizeAndMove struct{}

func (SynchronizeAndMove) Name() string { return "SynchronizeAndMove" }

func (SynchronizeAndMove) Check(ctx Context) Result {
	if ctx.Config.MergesDisabled {
		return NoMaintenance()
	}
	if len(ctx.InconsistentGroup) > 0 {
		return NoMaintenance()
	}
	if ctx.anyIdealNodeInState(types.StateMaintenance) {
		return NoMaintenance()
	}
	// A node not in {Up, Initializing, Retired} is treated as mid a
	// pending cluster-state transition and unsafe to merge against; our
	// single-reported-state model has no separate "wanted" state, so this
	// reduces to "ideal node state isn't one of the three" (see DESIGN.md
	// open question 5).
	if ctx.anyIdealNodeOutsideMergeableStates() {
		return NoMaintenance()
	}
	if allCopiesInvalid(ctx.Entry) {
		return NoMaintenance()
	}

	ideal := ctx.idealSet()
	holding := make(map[uint16]bool, len(ctx.Entry.Copies))
	for _, c := range ctx.Entry.Copies {
		holding[c.NodeIndex] = true
	}

	var missing []uint16
	for _, idx := range ctx.IdealNodes {
		if !holding[idx] {
			missing = append(missing, idx)
		}
	}

	var nonIdeal []uint16
	for _, c := range ctx.Entry.Copies {
		if !ideal[c.NodeIndex] {
			nonIdeal = append(nonIdeal, c.NodeIndex)
		}
	}

	outOfSync := hasChecksumMismatch(ctx.Entry, ideal)

	if len(missing) == 0 && len(nonIdeal) == 0 && !outOfSync {
		return NoMaintenance()
	}

	nodes := unionUint16(ctx.Entry.NodeIndices(), missing)

	onlyMove := len(missing) == 0 && !outOfSync && len(nonIdeal) > 0

	var priority SchedulePriority
	switch {
	case ctx.Space == bucket.SpaceGlobal:
		priority = PriorityVeryHigh
	case onlyMove:
		priority = PriorityLow
	default:
		priority = PriorityMedium
	}

	op := newOperation(OpMergeBucket, ctx.Space, ctx.Entry.ID)
	op.Nodes = nodes
	op.Reason = synchronizeReason(missing, nonIdeal, outOfSync)
	return StoredResult(op, priority)
}

func synchronizeReason(missing, nonIdeal []uint16, outOfSync bool) string {
	switch {
	case len(missing) > 0:
		return fmt.Sprintf("too few copies: missing replicas on %v", missing)
	case len(nonIdeal) > 0:
		return fmt.Sprintf("move to ideal: non-ideal holders %v", nonIdeal)
	case outOfSync:
		return "out of sync: checksum mismatch between copies"
	default:
		return ""
	}
}

// hasChecksumMismatch reports whether any two copies disagree,
// ignoring empties on non-ideal nodes and invalid entries (spec.md
// §4.3.4, via bucket.Copy.ConsistentWith).
func hasChecksumMismatch(entry bucket.Entry, ideal map[uint16]bool) bool {
	for i := range entry.Copies {
		for j := i + 1; j < len(entry.Copies); j++ {
			a, b := entry.Copies[i], entry.Copies[j]
			if !a.ConsistentWith(b, ideal[a.NodeIndex], ideal[b.NodeIndex]) {
				return true
			}
		}
	}
	return false
}

func allCopiesInvalid(entry bucket.Entry) bool {
	if len(entry.Copies) == 0 {
		return false
	}
	for _, c := range entry.Copies {
		if c.Valid {
			return false
		}
	}
	return true
}

func unionUint16(a, b []uint16) []uint16 {
	seen := make(map[uint16]bool, len(a)+len(b))
	var out []uint16
	for _, n := range a {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range b {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
