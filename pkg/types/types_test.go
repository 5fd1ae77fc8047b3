package types

import "testing"

func TestNodeTypeOrder(t *testing.T) {
	if !(NodeTypeDistributor < NodeTypeStorage) {
		t.Fatal("expected Distributor < Storage")
	}
}

func TestNodeHashUnique(t *testing.T) {
	seen := map[uint32]Node{}
	for idx := uint16(0); idx < 8; idx++ {
		for _, typ := range []NodeType{NodeTypeDistributor, NodeTypeStorage} {
			n := Node{Type: typ, Index: idx}
			h := n.Hash()
			if other, ok := seen[h]; ok {
				t.Fatalf("hash collision between %v and %v", n, other)
			}
			seen[h] = n
		}
	}
}

func TestNodeCompare(t *testing.T) {
	a := Node{Type: NodeTypeDistributor, Index: 5}
	b := Node{Type: NodeTypeStorage, Index: 0}
	if a.Compare(b) >= 0 {
		t.Fatalf("expected distributor node to sort before storage node")
	}
	c := Node{Type: NodeTypeStorage, Index: 1}
	if b.Compare(c) >= 0 {
		t.Fatalf("expected storage.0 to sort before storage.1")
	}
}

func TestStateCodeRoundTrip(t *testing.T) {
	states := []State{StateUnknown, StateMaintenance, StateDown, StateStopping, StateInitializing, StateRetired, StateUp}
	for _, s := range states {
		code := s.Code()
		got, err := ParseState(code)
		if err != nil {
			t.Fatalf("ParseState(%q): %v", code, err)
		}
		if got != s {
			t.Fatalf("round trip mismatch: %s -> %q -> %s", s, code, got)
		}
	}
}

func TestStateRankDemotion(t *testing.T) {
	// Up has the highest rank; Maintenance has a low rank. A wanted
	// state may only move a node to rank <= current rank.
	if StateUp.Rank() <= StateMaintenance.Rank() {
		t.Fatal("expected Up to outrank Maintenance")
	}
}

func TestUseCaseAccepts(t *testing.T) {
	if !UpStatesUpInit.Accepts(StateInitializing) {
		t.Fatal("ui should accept Initializing")
	}
	if UpStatesUp.Accepts(StateInitializing) {
		t.Fatal("u should not accept Initializing")
	}
	if !UpStatesUpInitMaintenance.Accepts(StateMaintenance) {
		t.Fatal("uim should accept Maintenance")
	}
}

func TestNodeStateValidateCapacity(t *testing.T) {
	ns := NodeState{State: StateUp, Capacity: 2.0}
	if err := ns.Validate(NodeTypeStorage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := NodeState{State: StateUp, Capacity: 0}
	if err := bad.Validate(NodeTypeStorage); err == nil {
		t.Fatal("expected error for zero capacity on storage node")
	}
}

func TestNodeStateValidateInitProgress(t *testing.T) {
	ns := NodeState{State: StateUp, InitProgress: 0.5}
	if err := ns.Validate(NodeTypeStorage); err == nil {
		t.Fatal("expected error: init-progress set while not Initializing")
	}
	ok := NodeState{State: StateInitializing, Capacity: 1, InitProgress: 0.5}
	if err := ok.Validate(NodeTypeStorage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultNodeStateIsDefault(t *testing.T) {
	if !DefaultNodeState().IsDefault() {
		t.Fatal("DefaultNodeState should be its own default")
	}
	withDesc := NodeState{State: StateUp, Capacity: 1, Description: "flapping"}
	if withDesc.IsDefault() {
		t.Fatal("a description should make the state non-default")
	}
}

func TestFeatureRepoImmutability(t *testing.T) {
	repo := NewFeatureRepo()
	n := Node{Type: NodeTypeStorage, Index: 2}
	next := repo.With(n, NodeSupportedFeatures{TwoPhaseRemoveLocation: true})

	if repo.Get(n).TwoPhaseRemoveLocation {
		t.Fatal("original repo must not be mutated")
	}
	if !next.Get(n).TwoPhaseRemoveLocation {
		t.Fatal("new repo must reflect the update")
	}
}
