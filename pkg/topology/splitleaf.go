package topology

// SplitIntoLeafGroups groups node indices by their owning leaf group
// (spec.md §4.1: "Splitting nodes into leaf groups"). Nodes that don't
// map to any leaf under d are returned separately in skipped, for the
// caller to log rather than silently drop.
func SplitIntoLeafGroups(d Distribution, nodes []uint16) (byLeaf map[uint16][]uint16, skipped []uint16) {
	byLeaf = map[uint16][]uint16{}
	for _, n := range nodes {
		leaf, ok := d.LeafForNode(n)
		if !ok {
			skipped = append(skipped, n)
			continue
		}
		byLeaf[leaf.Index] = append(byLeaf[leaf.Index], n)
	}
	return byLeaf, skipped
}
