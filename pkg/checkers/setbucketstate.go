package checkers

import (
	"sort"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/topology"
	"github.com/cuemby/stratum/pkg/types"
)

// SetBucketState implements spec.md §4.3.6: decide which copy (or, under
// active-per-group, which copy per leaf group) should be the active
// one, and emit activate/deactivate instructions to get there.
type SetBucketState struct{}

func (SetBucketState) Name() string { return "SetBucketState" }

func (SetBucketState) Check(ctx Context) Result {
	if ctx.Config.ActivationDisabled {
		return NoMaintenance()
	}
	if len(ctx.InconsistentGroup) > 0 {
		return NoMaintenance()
	}

	idealRank := make(map[uint16]int, len(ctx.IdealNodes))
	for i, n := range ctx.IdealNodes {
		idealRank[n] = i
	}

	groups := [][]activationCandidate{overallCandidates(ctx, idealRank)}
	if ctx.Distribution.ActivePerGroup() {
		groups = groupedCandidates(ctx, idealRank)
	}

	maintenanceIdeal := ctx.anyIdealNodeInState(types.StateMaintenance)
	multiGroup := len(groups) > 1
	inhibitBudget := ctx.Config.MaxActivationInhibitedOutOfSyncGroups

	newActive := make(map[uint16]bool)
	for _, candidates := range groups {
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].less(candidates[j])
		})

		chosen, ok := chooseCandidate(ctx, candidates, multiGroup, &inhibitBudget)
		if !ok {
			continue
		}
		if maintenanceIdeal && !chosen.ready {
			features := ctx.Features.Get(types.Node{Type: types.NodeTypeStorage, Index: chosen.nodeIndex})
			if !features.NoImplicitIndexingOfActive {
				continue
			}
		}
		newActive[chosen.nodeIndex] = true
	}

	var activate, deactivate []uint16
	for n := range newActive {
		if c, ok := ctx.Entry.CopyOn(n); !ok || !c.Active {
			activate = append(activate, n)
		}
	}
	for _, c := range ctx.Entry.Copies {
		if c.Active && !newActive[c.NodeIndex] {
			deactivate = append(deactivate, c.NodeIndex)
		}
	}

	if len(activate) == 0 && len(deactivate) == 0 {
		return NoMaintenance()
	}

	nodes := unionUint16(activate, deactivate)
	op := newOperation(OpSetBucketState, ctx.Space, ctx.Entry.ID)
	op.Nodes = nodes
	op.Activate = activate
	op.Deactivate = deactivate
	op.Reason = "activation state diverges from the scoring pass"
	return StoredResult(op, PriorityHighest)
}

// chooseCandidate walks candidates in scored order, skipping any that
// disagree with the cluster's majority-consistent bucket info so long as
// budget remains (spec.md §4.3.6).
func chooseCandidate(ctx Context, candidates []activationCandidate, multiGroup bool, inhibitBudget *int) (activationCandidate, bool) {
	checkOracle := multiGroup && *inhibitBudget > 0 && ctx.Oracle != nil
	for _, c := range candidates {
		if !checkOracle {
			return c, true
		}
		if ctx.Oracle.Agrees(ctx.Space, ctx.Entry.ID, c.leafGroup, c.copy) {
			return c, true
		}
		*inhibitBudget--
		if *inhibitBudget <= 0 {
			checkOracle = false
		}
	}
	return candidates[0], true
}

type activationCandidate struct {
	nodeIndex uint16
	leafGroup uint16
	copy      bucket.Copy
	ready     bool
	docCount  uint32
	idealIdx  int
	active    bool
}

// less implements the tuple (not ready, doc-count-descending,
// ideal-index, not active, node-index), lexicographically smallest wins.
func (a activationCandidate) less(b activationCandidate) bool {
	if a.ready != b.ready {
		return a.ready
	}
	if a.docCount != b.docCount {
		return a.docCount > b.docCount
	}
	if a.idealIdx != b.idealIdx {
		return a.idealIdx < b.idealIdx
	}
	if a.active != b.active {
		return a.active
	}
	return a.nodeIndex < b.nodeIndex
}

func overallCandidates(ctx Context, idealRank map[uint16]int) []activationCandidate {
	out := make([]activationCandidate, 0, len(ctx.Entry.Copies))
	for _, c := range ctx.Entry.Copies {
		if !c.Valid {
			continue
		}
		rank, isIdeal := idealRank[c.NodeIndex]
		if !isIdeal {
			continue
		}
		out = append(out, activationCandidate{
			nodeIndex: c.NodeIndex,
			copy:      c,
			ready:     c.Ready,
			docCount:  c.Info.DocCount,
			idealIdx:  rank,
			active:    c.Active,
		})
	}
	return out
}

func groupedCandidates(ctx Context, idealRank map[uint16]int) [][]activationCandidate {
	byLeaf, _ := topology.SplitIntoLeafGroups(ctx.Distribution, ctx.Entry.NodeIndices())
	groups := make([][]activationCandidate, 0, len(byLeaf))
	for leaf, nodes := range byLeaf {
		nodeSet := make(map[uint16]bool, len(nodes))
		for _, n := range nodes {
			nodeSet[n] = true
		}
		var candidates []activationCandidate
		for _, c := range ctx.Entry.Copies {
			if !c.Valid || !nodeSet[c.NodeIndex] {
				continue
			}
			rank, isIdeal := idealRank[c.NodeIndex]
			if !isIdeal {
				continue
			}
			candidates = append(candidates, activationCandidate{
				nodeIndex: c.NodeIndex,
				leafGroup: leaf,
				copy:      c,
				ready:     c.Ready,
				docCount:  c.Info.DocCount,
				idealIdx:  rank,
				active:    c.Active,
			})
		}
		if len(candidates) > 0 {
			groups = append(groups, candidates)
		}
	}
	return groups
}
