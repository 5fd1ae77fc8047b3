package topology

import (
	"math"
	"sort"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/types"
)

// IdealNodes computes the deterministic preferred node order for a
// bucket under a distribution and cluster state (spec.md §4.1). The
// result has length at most redundancy.
//
// For NodeTypeDistributor, the group tree is walked picking the single
// highest-scoring child at every level down to one leaf group, then
// the leaf's nodes are ranked. For NodeTypeStorage, the redundancy
// budget is split across children per each group's
// RedundancyGroupDistribution and the walk fans out accordingly.
func IdealNodes(d Distribution, cs clusterstate.ClusterState, id bucket.ID, nodeType types.NodeType, upStates types.UseCase, redundancy int) ([]uint16, error) {
	if d.Root() == nil {
		return nil, nil
	}
	if int(id.UsedBits) < int(cs.DistributionBits()) {
		return nil, ErrTooFewBucketBits
	}
	seed := id.Seed32(cs.DistributionBits(), nodeType == types.NodeTypeStorage)

	if nodeType == types.NodeTypeDistributor {
		leaf, err := pickDistributorPath(d.Root(), seed, cs, d.WholeGroupOwnershipTransfer())
		if err != nil {
			return nil, err
		}
		return selectLeafNodes(leaf, seed, cs, nodeType, upStates, redundancy), nil
	}
	return collectStorageNodes(d.Root(), seed, cs, upStates, redundancy), nil
}

// pickDistributorPath descends the tree choosing, at each interior
// group, the single highest-scoring child (spec.md §4.1 step 2),
// stopping once it reaches a leaf.
func pickDistributorPath(g *Group, bucketSeed uint32, cs clusterstate.ClusterState, wholeGroupTransfer bool) (*Group, error) {
	if g.IsLeaf() {
		return g, nil
	}
	groupSeed := bucketSeed ^ g.DistributionHash

	var best *Group
	bestScore := -1.0
	for _, c := range g.Children {
		if wholeGroupTransfer && !groupDistributorsAllUpOrInit(c, cs) {
			continue
		}
		score := childScore(groupSeed, c)
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}
	if best == nil {
		return nil, ErrNoDistributorsAvailable
	}
	return pickDistributorPath(best, bucketSeed, cs, wholeGroupTransfer)
}

func childScore(groupSeed uint32, c *Group) float64 {
	raw := DrawAt(groupSeed, c.Index)
	capacity := c.Capacity
	if capacity <= 0 {
		capacity = 1.0
	}
	return math.Pow(raw, 1.0/capacity)
}

// groupDistributorsAllUpOrInit reports whether every node under g is
// reported Up or Initializing as a distributor — the
// whole-group-ownership-transfer gate (spec.md §4.1 step 2).
func groupDistributorsAllUpOrInit(g *Group, cs clusterstate.ClusterState) bool {
	for _, leaf := range leafGroups(g) {
		for _, n := range leaf.Nodes {
			st := cs.NodeState(types.Node{Type: types.NodeTypeDistributor, Index: n}).State
			if st != types.StateUp && st != types.StateInitializing {
				return false
			}
		}
	}
	return true
}

// collectStorageNodes descends the tree, splitting budget across
// children per their group's RedundancyGroupDistribution (assigning
// the largest shares to the highest-scoring children), and
// concatenates results in ascending group-traversal order (spec.md
// §4.1 steps 2-5).
func collectStorageNodes(g *Group, bucketSeed uint32, cs clusterstate.ClusterState, upStates types.UseCase, budget int) []uint16 {
	if budget <= 0 {
		return nil
	}
	if g.IsLeaf() {
		return selectLeafNodes(g, bucketSeed, cs, types.NodeTypeStorage, upStates, budget)
	}
	groupSeed := bucketSeed ^ g.DistributionHash

	type scored struct {
		group *Group
		score float64
	}
	ranked := make([]scored, len(g.Children))
	for i, c := range g.Children {
		ranked[i] = scored{group: c, score: childScore(groupSeed, c)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].group.Index < ranked[j].group.Index
	})

	alloc := g.Redundancy.Expand(budget)
	budgetByIndex := map[uint16]int{}
	for i, s := range ranked {
		if i >= len(alloc) {
			break
		}
		budgetByIndex[s.group.Index] = alloc[i]
	}

	var out []uint16
	for _, c := range g.Children {
		b := budgetByIndex[c.Index]
		if b <= 0 {
			continue
		}
		out = append(out, collectStorageNodes(c, bucketSeed, cs, upStates, b)...)
	}
	return out
}

type leafCandidate struct {
	node        uint16
	score       float64
	reliability float64
}

// selectLeafNodes ranks a leaf group's nodes by a bucket-level PRNG
// draw at each node's own index (not the group-traversal PRNG, per
// spec.md §4.1 step 3), keeps the top `budget` by score, and then
// trims by cumulative reliability (step 4), where a node that has not
// finished initializing has its init-progress as reliability. Because
// the list is already cut to `budget` and every reliability is in
// [0,1], the trim neither adds candidates nor drops any: an
// Initializing node takes a full slot.
func selectLeafNodes(leaf *Group, bucketSeed uint32, cs clusterstate.ClusterState, nodeType types.NodeType, upStates types.UseCase, budget int) []uint16 {
	if budget <= 0 {
		return nil
	}
	var candidates []leafCandidate
	for _, n := range leaf.Nodes {
		ns := cs.NodeState(types.Node{Type: nodeType, Index: n})
		if !upStates.Accepts(ns.State) {
			continue
		}
		capacity := ns.Capacity
		if capacity <= 0 {
			capacity = 1.0
		}
		score := math.Pow(DrawAt(bucketSeed, n), 1.0/capacity)
		reliability := 1.0
		if ns.State == types.StateInitializing {
			reliability = ns.InitProgress
		}
		candidates = append(candidates, leafCandidate{node: n, score: score, reliability: reliability})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node < candidates[j].node
	})
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}
	candidates = trimByReliability(candidates, float64(budget))

	out := make([]uint16, len(candidates))
	for i, c := range candidates {
		out[i] = c.node
	}
	return out
}

// trimByReliability implements spec.md §4.1 step 4: walk front-to-back
// keeping candidates until cumulative reliability ≥ target; then walk
// back-to-front dropping any candidate whose removal still leaves
// cumulative reliability ≥ target.
func trimByReliability(candidates []leafCandidate, target float64) []leafCandidate {
	cum := 0.0
	keepUpTo := len(candidates)
	for i, c := range candidates {
		cum += c.reliability
		if cum >= target {
			keepUpTo = i + 1
			break
		}
	}
	kept := candidates[:keepUpTo]

	for len(kept) > 0 {
		total := 0.0
		for _, c := range kept {
			total += c.reliability
		}
		if total-kept[len(kept)-1].reliability >= target {
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}
	return kept
}
