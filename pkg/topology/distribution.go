package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// Distribution is the immutable, fully-built topology configuration:
// redundancy policy flags plus the group tree and its derived flat
// node→leaf-group index (spec.md §3). Any change produces a new
// Distribution; equality and identity are defined by the raw
// serialized config text, not by pointer or field comparison.
type Distribution struct {
	raw string

	redundancy                  int
	initialRedundancy           int
	readyCopies                 int
	activePerGroup              bool
	ensurePrimaryPersisted      bool
	wholeGroupOwnershipTransfer bool

	root       *Group
	nodeToLeaf map[uint16]*Group
}

// NewDistribution builds a Distribution from a fully-constructed group
// tree, computing distribution hashes and the flat node index, and
// deriving the canonical raw serialization used for equality.
func NewDistribution(redundancy, initialRedundancy, readyCopies int, activePerGroup, ensurePrimaryPersisted, wholeGroupOwnershipTransfer bool, root *Group) Distribution {
	buildHashes(root)
	d := Distribution{
		redundancy:                  redundancy,
		initialRedundancy:           initialRedundancy,
		readyCopies:                 readyCopies,
		activePerGroup:              activePerGroup,
		ensurePrimaryPersisted:      ensurePrimaryPersisted,
		wholeGroupOwnershipTransfer: wholeGroupOwnershipTransfer,
		root:                        root,
		nodeToLeaf:                  nodeToLeaf(root),
	}
	d.raw = d.serialize()
	return d
}

func (d Distribution) Redundancy() int                  { return d.redundancy }
func (d Distribution) InitialRedundancy() int            { return d.initialRedundancy }
func (d Distribution) ReadyCopies() int                  { return d.readyCopies }
func (d Distribution) ActivePerGroup() bool               { return d.activePerGroup }
func (d Distribution) EnsurePrimaryPersisted() bool        { return d.ensurePrimaryPersisted }
func (d Distribution) WholeGroupOwnershipTransfer() bool   { return d.wholeGroupOwnershipTransfer }
func (d Distribution) Root() *Group                       { return d.root }

// LeafForNode returns the leaf group owning storage node index idx.
func (d Distribution) LeafForNode(idx uint16) (*Group, bool) {
	g, ok := d.nodeToLeaf[idx]
	return g, ok
}

// String returns the raw serialized config text.
func (d Distribution) String() string { return d.raw }

// Equal compares two distributions by their raw serialized form, the
// stable identity spec.md §3 specifies.
func (d Distribution) Equal(other Distribution) bool { return d.raw == other.raw }

func (d Distribution) serialize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dist ( redundancy=%d initial=%d ready=%d active-per-group=%t ensure-primary-persisted=%t whole-group-transfer=%t ",
		d.redundancy, d.initialRedundancy, d.readyCopies, d.activePerGroup, d.ensurePrimaryPersisted, d.wholeGroupOwnershipTransfer)
	writeGroup(&b, d.root)
	b.WriteString(")")
	return b.String()
}

func writeGroup(b *strings.Builder, g *Group) {
	fmt.Fprintf(b, "group ( name=%s index=%d cap=%s ", g.Name, g.Index, formatCapacity(g.Capacity))
	if g.IsLeaf() {
		fmt.Fprintf(b, "nodes=%s ", joinNodes(g.Nodes))
	} else {
		fmt.Fprintf(b, "dist=%s ", g.Redundancy.String())
		for _, c := range g.Children {
			writeGroup(b, c)
		}
	}
	b.WriteString(") ")
}

func formatCapacity(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

func joinNodes(nodes []uint16) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = strconv.FormatUint(uint64(n), 10)
	}
	return strings.Join(parts, ",")
}
