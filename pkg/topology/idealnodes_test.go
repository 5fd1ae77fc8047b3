package topology

import (
	"testing"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/types"
)

func twoLeafDistribution(t *testing.T) Distribution {
	t.Helper()
	dist, err := ParseRedundancyGroupDistribution("1|1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf0 := NewLeafGroup(1, "g0", 1.0, []uint16{0, 1, 2})
	leaf1 := NewLeafGroup(2, "g1", 1.0, []uint16{3, 4, 5})
	root := NewInteriorGroup(0, "root", 1.0, []*Group{leaf0, leaf1}, dist)
	return NewDistribution(2, 2, 1, true, false, false, root)
}

func TestIdealNodesTwoGroupSplit(t *testing.T) {
	d := twoLeafDistribution(t)
	cs := clusterstate.New(16)
	id, err := bucket.New(32, 0xdeadbeef00000000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nodes, err := IdealNodes(d, cs, id, types.NodeTypeStorage, types.UpStatesUp, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d (%v)", len(nodes), nodes)
	}

	byLeaf, skipped := SplitIntoLeafGroups(d, nodes)
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped nodes: %v", skipped)
	}
	if len(byLeaf[1]) != 1 || len(byLeaf[2]) != 1 {
		t.Fatalf("expected exactly one node per leaf group, got %v", byLeaf)
	}
}

func TestIdealNodesDeterministic(t *testing.T) {
	d := twoLeafDistribution(t)
	cs := clusterstate.New(16)
	id, _ := bucket.New(32, 0xdeadbeef00000000)

	a, err := IdealNodes(d, cs, id, types.NodeTypeStorage, types.UpStatesUp, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := IdealNodes(d, cs, id, types.NodeTypeStorage, types.UpStatesUp, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic lengths: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic result: %v vs %v", a, b)
		}
	}
}

func TestIdealNodesRespectsRedundancyBound(t *testing.T) {
	d := twoLeafDistribution(t)
	cs := clusterstate.New(16)
	id, _ := bucket.New(32, 0xdeadbeef00000000)

	nodes, err := IdealNodes(d, cs, id, types.NodeTypeStorage, types.UpStatesUp, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) > 2 {
		t.Fatalf("expected at most 2 nodes, got %d", len(nodes))
	}
	if len(nodes) != 2 {
		t.Fatalf("expected exactly 2 nodes given 6 up nodes available, got %d", len(nodes))
	}
}

func TestIdealNodesExcludesDownNodes(t *testing.T) {
	d := twoLeafDistribution(t)
	cs := clusterstate.New(16)
	// Take every node in leaf g0 down; redundancy must fall back to what
	// g1 alone can provide once the allocation step sees g0 contribute
	// nothing usable at the leaf level.
	for _, idx := range []uint16{0, 1, 2} {
		var err error
		cs, err = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: idx}, types.NodeState{State: types.StateDown, Capacity: 1.0, MinUsedBits: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	id, _ := bucket.New(32, 0xdeadbeef00000000)

	nodes, err := IdealNodes(d, cs, id, types.NodeTypeStorage, types.UpStatesUp, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range nodes {
		if n == 0 || n == 1 || n == 2 {
			t.Fatalf("down node %d must not appear in ideal nodes: %v", n, nodes)
		}
	}
}

func TestIdealNodesTooFewBucketBits(t *testing.T) {
	d := twoLeafDistribution(t)
	cs := clusterstate.New(40)
	id, _ := bucket.New(8, 0xde00000000000000)

	_, err := IdealNodes(d, cs, id, types.NodeTypeStorage, types.UpStatesUp, 2)
	if err != ErrTooFewBucketBits {
		t.Fatalf("expected ErrTooFewBucketBits, got %v", err)
	}
}

func TestIdealNodesDistributorSingleLeaf(t *testing.T) {
	d := twoLeafDistribution(t)
	cs := clusterstate.New(16)
	id, _ := bucket.New(32, 0xdeadbeef00000000)

	nodes, err := IdealNodes(d, cs, id, types.NodeTypeDistributor, types.UpStatesUp, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byLeaf, _ := SplitIntoLeafGroups(d, nodes)
	nonEmpty := 0
	for _, v := range byLeaf {
		if len(v) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty != 1 {
		t.Fatalf("expected distributor placement to pick nodes from exactly one leaf group, got %d leaves: %v", nonEmpty, byLeaf)
	}
}

func TestDistributionSerializeParseRoundTrip(t *testing.T) {
	d := twoLeafDistribution(t)
	parsed, err := ParseDistribution(d.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(parsed) {
		t.Fatalf("round trip mismatch:\n  raw:    %q\n  parsed: %q", d.String(), parsed.String())
	}
	if parsed.Redundancy() != 2 || parsed.ReadyCopies() != 1 || !parsed.ActivePerGroup() {
		t.Fatalf("parsed distribution lost flags: %+v", parsed)
	}
	leaf, ok := parsed.LeafForNode(4)
	if !ok || leaf.Index != 2 {
		t.Fatalf("expected node 4 to map to leaf group 2, got %+v (ok=%v)", leaf, ok)
	}
}
