package topology

import "sort"

// rootDistributionSeed is the fixed seed the distribution hash walk
// starts from (spec.md §3: "seeded 0x8badf00d").
const rootDistributionSeed uint32 = 0x8badf00d

const hashMultiplier uint32 = 0x9e3779b9 // golden-ratio odd constant, avalanches well under XOR-shift

// Group is one node of the hierarchical topology tree. A Group is
// either a leaf (Nodes set, Children nil) or an interior node
// (Children set, Nodes nil); never both.
type Group struct {
	Index    uint16
	Name     string
	Capacity float64

	// Children is non-nil for an interior group, ordered ascending by
	// Index. Redundancy carries that group's child-redundancy spec.
	Children   []*Group
	Redundancy RedundancyGroupDistribution

	// Nodes is non-nil for a leaf group: the sorted node indices it owns.
	Nodes []uint16

	// DistributionHash is precomputed once the tree is built (see
	// buildHashes) — a recursive XOR-with-multiplier of the parent's
	// hash and this group's own index.
	DistributionHash uint32
}

// IsLeaf reports whether g has no children.
func (g *Group) IsLeaf() bool { return g.Children == nil }

// NewLeafGroup constructs a leaf group. nodes is sorted ascending and
// copied.
func NewLeafGroup(index uint16, name string, capacity float64, nodes []uint16) *Group {
	sorted := append([]uint16(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Group{Index: index, Name: name, Capacity: capacity, Nodes: sorted}
}

// NewInteriorGroup constructs an interior group. children must already
// be sorted ascending by Index; dist governs how a redundancy budget
// splits across them.
func NewInteriorGroup(index uint16, name string, capacity float64, children []*Group, dist RedundancyGroupDistribution) *Group {
	return &Group{Index: index, Name: name, Capacity: capacity, Children: children, Redundancy: dist}
}

func childHash(parentHash uint32, index uint16) uint32 {
	h := parentHash ^ uint32(index)
	h *= hashMultiplier
	h ^= h >> 15
	return h
}

// buildHashes assigns DistributionHash to g and every descendant,
// starting g itself from rootDistributionSeed.
func buildHashes(g *Group) {
	g.DistributionHash = childHash(rootDistributionSeed, g.Index)
	assignChildHashes(g)
}

func assignChildHashes(g *Group) {
	for _, c := range g.Children {
		c.DistributionHash = childHash(g.DistributionHash, c.Index)
		assignChildHashes(c)
	}
}

// leafGroups returns every leaf descendant of g, in tree-traversal
// order.
func leafGroups(g *Group) []*Group {
	if g.IsLeaf() {
		return []*Group{g}
	}
	var out []*Group
	for _, c := range g.Children {
		out = append(out, leafGroups(c)...)
	}
	return out
}

// nodeToLeaf returns a flat map from every node index under g to the
// leaf group that owns it.
func nodeToLeaf(g *Group) map[uint16]*Group {
	out := map[uint16]*Group{}
	for _, leaf := range leafGroups(g) {
		for _, n := range leaf.Nodes {
			out[n] = leaf
		}
	}
	return out
}
