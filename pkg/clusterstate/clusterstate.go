// Package clusterstate implements the versioned cluster-state snapshot
// (spec.md §3-4.4, §6) and its wire format: a single-line whitespace
// token stream, forgiving to read, canonical to write.
package clusterstate

import (
	"fmt"

	"github.com/cuemby/stratum/pkg/types"
)

// MinDistributionBits and MaxDistributionBits bound the legal
// distribution-bit count.
const (
	MinDistributionBits = 1
	MaxDistributionBits = 64
)

// ClusterState is an immutable, versioned snapshot of every node's
// state plus the overall cluster state and distribution-bit count.
// Construction always goes through New/With* methods, each of which
// returns a new value; nothing mutates a ClusterState in place, so a
// holder can publish one by reference and readers never need to lock
// (spec.md §5).
type ClusterState struct {
	version          uint32
	cluster          types.State
	distributionBits uint8

	// nominal counts, possibly larger than the highest explicit index
	// if trailing nodes are implicitly Up-default.
	distributorCount uint16
	storageCount     uint16

	// sparse: entries equal to types.DefaultNodeState() are never
	// stored (spec.md §3).
	nodes map[types.Node]types.NodeState
}

// New returns a baseline ClusterState: version 0, overall state Up,
// the given distribution-bit count, and no nodes.
func New(distributionBits uint8) ClusterState {
	return ClusterState{
		cluster:          types.StateUp,
		distributionBits: distributionBits,
		nodes:            map[types.Node]types.NodeState{},
	}
}

func (cs ClusterState) clone() ClusterState {
	next := cs
	next.nodes = make(map[types.Node]types.NodeState, len(cs.nodes))
	for k, v := range cs.nodes {
		next.nodes[k] = v
	}
	return next
}

// Version returns the cluster-state version.
func (cs ClusterState) Version() uint32 { return cs.version }

// WithVersion returns a copy with the version replaced.
func (cs ClusterState) WithVersion(v uint32) ClusterState {
	next := cs.clone()
	next.version = v
	return next
}

// Cluster returns the overall cluster state.
func (cs ClusterState) Cluster() types.State { return cs.cluster }

// WithCluster returns a copy with the overall cluster state replaced.
// It is a construction-time error (spec.md §7 InvalidState) to pass a
// state not valid cluster-wide.
func (cs ClusterState) WithCluster(s types.State) (ClusterState, error) {
	if !s.ValidClusterWide() {
		return cs, fmt.Errorf("clusterstate: %w: %s is not valid cluster-wide", types.ErrInvalidState, s)
	}
	next := cs.clone()
	next.cluster = s
	return next, nil
}

// DistributionBits returns the distribution-bit count.
func (cs ClusterState) DistributionBits() uint8 { return cs.distributionBits }

// WithDistributionBits returns a copy with the distribution-bit count
// replaced, validated to be in [1,64].
func (cs ClusterState) WithDistributionBits(bits uint8) (ClusterState, error) {
	if bits < MinDistributionBits || bits > MaxDistributionBits {
		return cs, fmt.Errorf("clusterstate: distribution bits %d out of range [%d,%d]", bits, MinDistributionBits, MaxDistributionBits)
	}
	next := cs.clone()
	next.distributionBits = bits
	return next, nil
}

// NodeCount returns the nominal node count for the given type: the
// array size a caller should assume, not necessarily the number of
// explicit entries. It still counts trailing Down nodes; only the
// serialized count (effectiveCount) trims them.
func (cs ClusterState) NodeCount(t types.NodeType) uint16 {
	if t == types.NodeTypeDistributor {
		return cs.distributorCount
	}
	return cs.storageCount
}

// WithNodeCount returns a copy with the nominal node count for t
// replaced.
func (cs ClusterState) WithNodeCount(t types.NodeType, count uint16) ClusterState {
	next := cs.clone()
	if t == types.NodeTypeDistributor {
		next.distributorCount = count
	} else {
		next.storageCount = count
	}
	return next
}

// NodeState returns n's state, or the implicit default (Up, no
// description) if n has no explicit entry.
func (cs ClusterState) NodeState(n types.Node) types.NodeState {
	if ns, ok := cs.nodes[n]; ok {
		return ns
	}
	return types.DefaultNodeState()
}

// WithNodeState returns a copy with n's state set to ns. Entries equal
// to the default are dropped from storage (spec.md §3), keeping the
// sparse representation canonical. It validates ns against n.Type
// (spec.md §3: "setting a state validates against the node's type").
func (cs ClusterState) WithNodeState(n types.Node, ns types.NodeState) (ClusterState, error) {
	if err := ns.Validate(n.Type); err != nil {
		return cs, err
	}
	next := cs.clone()
	if ns.IsDefault() {
		delete(next.nodes, n)
	} else {
		next.nodes[n] = ns
	}
	if n.Type == types.NodeTypeDistributor && uint16(n.Index)+1 > next.distributorCount {
		next.distributorCount = n.Index + 1
	}
	if n.Type == types.NodeTypeStorage && uint16(n.Index)+1 > next.storageCount {
		next.storageCount = n.Index + 1
	}
	return next, nil
}

// effectiveCount returns the nominal count for t, trimmed of any
// trailing run of Down (or absent-beyond-known) nodes, matching
// spec.md §6: "writing is canonical... trailing down-nodes trimmed".
func (cs ClusterState) effectiveCount(t types.NodeType) uint16 {
	count := cs.NodeCount(t)
	for count > 0 {
		n := types.Node{Type: t, Index: count - 1}
		if cs.NodeState(n).State != types.StateDown {
			break
		}
		count--
	}
	return count
}

// ForEachNode calls fn for every node index in [0, NodeCount(t)) of
// type t, in ascending order, passing its (possibly default) state.
func (cs ClusterState) ForEachNode(t types.NodeType, fn func(types.Node, types.NodeState)) {
	count := cs.NodeCount(t)
	for i := uint16(0); i < count; i++ {
		n := types.Node{Type: t, Index: i}
		fn(n, cs.NodeState(n))
	}
}

// Equal compares two cluster states by value: same version, cluster
// state, distribution bits, effective node counts, and node states for
// every index within those effective counts. This is the equality P6
// (serialization round-trip) is checked against — a ClusterState is
// only ever distinguishable up to what the wire format can represent.
func (cs ClusterState) Equal(other ClusterState) bool {
	if cs.version != other.version || cs.cluster != other.cluster || cs.distributionBits != other.distributionBits {
		return false
	}
	for _, t := range []types.NodeType{types.NodeTypeDistributor, types.NodeTypeStorage} {
		ac, bc := cs.effectiveCount(t), other.effectiveCount(t)
		if ac != bc {
			return false
		}
		for i := uint16(0); i < ac; i++ {
			n := types.Node{Type: t, Index: i}
			if cs.NodeState(n) != other.NodeState(n) {
				return false
			}
		}
	}
	return true
}
