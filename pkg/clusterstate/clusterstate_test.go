package clusterstate

import (
	"testing"

	"github.com/cuemby/stratum/pkg/types"
)

func TestNewDefaults(t *testing.T) {
	cs := New(16)
	if cs.Cluster() != types.StateUp {
		t.Fatalf("expected Up, got %s", cs.Cluster())
	}
	if cs.DistributionBits() != 16 {
		t.Fatalf("expected 16 bits, got %d", cs.DistributionBits())
	}
	if cs.NodeCount(types.NodeTypeStorage) != 0 {
		t.Fatal("expected zero storage nodes")
	}
}

func TestWithClusterRejectsInvalidState(t *testing.T) {
	cs := New(16)
	if _, err := cs.WithCluster(types.StateRetired); err == nil {
		t.Fatal("expected error: Retired is not valid cluster-wide")
	}
	next, err := cs.WithCluster(types.StateDown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Cluster() != types.StateDown {
		t.Fatal("cluster state not updated")
	}
	if cs.Cluster() != types.StateUp {
		t.Fatal("original value must not be mutated")
	}
}

func TestWithNodeStateBumpsNominalCount(t *testing.T) {
	cs := New(16)
	cs, err := cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 4}, types.NodeState{State: types.StateUp, Capacity: 2.0, MinUsedBits: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.NodeCount(types.NodeTypeStorage) != 5 {
		t.Fatalf("expected nominal count 5, got %d", cs.NodeCount(types.NodeTypeStorage))
	}
}

func TestWithNodeStateRejectsInvalid(t *testing.T) {
	cs := New(16)
	_, err := cs.WithNodeState(types.Node{Type: types.NodeTypeDistributor, Index: 0}, types.NodeState{State: types.StateUp, Capacity: 3.0})
	if err == nil {
		t.Fatal("expected error: capacity is meaningless on a distributor")
	}
}

func TestEffectiveCountTrimsTrailingDown(t *testing.T) {
	cs := New(16)
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 0}, types.NodeState{State: types.StateUp, Capacity: 1.0, MinUsedBits: 1})
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 1}, types.NodeState{State: types.StateDown, Capacity: 1.0, MinUsedBits: 1})
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 2}, types.NodeState{State: types.StateDown, Capacity: 1.0, MinUsedBits: 1})
	if cs.NodeCount(types.NodeTypeStorage) != 3 {
		t.Fatalf("expected nominal count 3, got %d", cs.NodeCount(types.NodeTypeStorage))
	}
	if cs.effectiveCount(types.NodeTypeStorage) != 1 {
		t.Fatalf("expected effective count 1 after trimming, got %d", cs.effectiveCount(types.NodeTypeStorage))
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	cs := New(16).WithVersion(42)
	cs, _ = cs.WithCluster(types.StateUp)
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeDistributor, Index: 0}, types.NodeState{State: types.StateUp, Capacity: 0, MinUsedBits: 1})
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 0}, types.NodeState{State: types.StateUp, Capacity: 1.0, MinUsedBits: 1})
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 1}, types.NodeState{
		State:       types.StateMaintenance,
		Description: "manual disk replacement",
		Capacity:    2.5,
		MinUsedBits: 1,
	})
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 2}, types.NodeState{State: types.StateUp, Capacity: 1.0, MinUsedBits: 1})

	line := cs.Serialize()
	parsed, err := Parse(line)
	if err != nil {
		t.Fatalf("unexpected parse error: %v (line=%q)", err, line)
	}
	if !cs.Equal(parsed) {
		t.Fatalf("round trip mismatch:\n  line:     %q\n  original: %+v\n  parsed:   %+v", line, cs, parsed)
	}
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	parsed, err := Parse("version:7 cluster:u bits:16 storage:1 storage.0.s:u storage.0.zzz:nonsense future.thing:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

func TestParseRelativePath(t *testing.T) {
	// The second token's key is relative (".m"), inheriting the absolute
	// path of the preceding "storage.1.s" token (spec.md §6).
	parsed, err := Parse("version:1 cluster:u bits:16 storage:2 storage.1.s:d .m:disk\\ failure")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ns := parsed.NodeState(types.Node{Type: types.NodeTypeStorage, Index: 1})
	if ns.State != types.StateDown {
		t.Fatalf("expected Down, got %s", ns.State)
	}
	if ns.Description != "disk failure" {
		t.Fatalf("expected unescaped description, got %q", ns.Description)
	}
}

func TestSerializeTrimsDefaultEntries(t *testing.T) {
	cs := New(16)
	cs, _ = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: 0}, types.DefaultNodeState())
	line := cs.Serialize()
	parsed, err := Parse(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.NodeState(types.Node{Type: types.NodeTypeStorage, Index: 0}) != types.DefaultNodeState() {
		t.Fatal("default entry should round-trip to the default state")
	}
}

func TestBundleForSpaceFallsBackToBaseline(t *testing.T) {
	baseline := New(16).WithVersion(5)
	b := NewBundle(baseline)
	if !b.ForSpace("global").Equal(baseline) {
		t.Fatal("expected global space to fall back to baseline")
	}

	override, _ := baseline.WithCluster(types.StateDown)
	b = b.WithSpace("global", override)
	if b.ForSpace("global").Cluster() != types.StateDown {
		t.Fatal("expected override to apply to global space only")
	}
	if b.ForSpace("default").Cluster() != types.StateUp {
		t.Fatal("default space must be unaffected by the global override")
	}
}

func TestBundleEqual(t *testing.T) {
	baseline := New(16).WithVersion(1)
	a := NewBundle(baseline)
	b := NewBundle(baseline)
	if !a.Equal(b) {
		t.Fatal("expected equal bundles to compare equal")
	}
	b.FeedBlocked = true
	if a.Equal(b) {
		t.Fatal("expected differing FeedBlocked to break equality")
	}
}
