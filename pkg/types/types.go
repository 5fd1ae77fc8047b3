package types

import "fmt"

// NodeType distinguishes the two kinds of participant in a content
// cluster. Distributor < Storage under the total order Compare defines.
type NodeType int

const (
	NodeTypeDistributor NodeType = iota
	NodeTypeStorage
)

// String returns the lowercase name used in wire formats ("distributor",
// "storage").
func (t NodeType) String() string {
	switch t {
	case NodeTypeDistributor:
		return "distributor"
	case NodeTypeStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// ParseNodeType parses the wire names produced by String.
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "distributor":
		return NodeTypeDistributor, nil
	case "storage":
		return NodeTypeStorage, nil
	default:
		return 0, fmt.Errorf("types: unknown node type %q", s)
	}
}

// Node identifies a single cluster participant by type and index.
type Node struct {
	Type  NodeType
	Index uint16
}

// Hash returns a unique small integer for use as a map/array key:
// (index << 1) | type_bit.
func (n Node) Hash() uint32 {
	bit := uint32(0)
	if n.Type == NodeTypeStorage {
		bit = 1
	}
	return (uint32(n.Index) << 1) | bit
}

// Compare orders nodes lexicographically by (Type, Index). It returns a
// negative number, zero, or a positive number as n sorts before, equal
// to, or after other.
func (n Node) Compare(other Node) int {
	if n.Type != other.Type {
		return int(n.Type) - int(other.Type)
	}
	return int(n.Index) - int(other.Index)
}

func (n Node) String() string {
	return fmt.Sprintf("%s.%d", n.Type, n.Index)
}

// State is the lifecycle state a node can be reported in, wanted to be
// in, or the cluster can be in as a whole.
type State int

const (
	StateUnknown State = iota
	StateMaintenance
	StateDown
	StateStopping
	StateInitializing
	StateRetired
	StateUp
)

type stateInfo struct {
	code        byte
	rank        int
	validAsReported  bool
	validAsWanted    bool
	validClusterWide bool
}

var stateTable = map[State]stateInfo{
	StateUnknown:      {'-', 0, true, false, false},
	StateMaintenance:  {'m', 1, false, true, false},
	StateDown:         {'d', 2, false, true, true},
	StateStopping:     {'s', 3, true, false, true},
	StateInitializing: {'i', 4, true, false, true},
	StateRetired:      {'r', 5, false, true, false},
	StateUp:           {'u', 6, true, true, true},
}

// Code returns the single-character serialized form.
func (s State) Code() byte {
	if info, ok := stateTable[s]; ok {
		return info.code
	}
	return '-'
}

// Rank returns the demotion-ordering rank used by the wanted-state rule:
// a wanted state may only move a node to a rank <= its current rank.
func (s State) Rank() int {
	return stateTable[s].rank
}

// ValidAsReported reports whether a node is allowed to report this state
// about itself.
func (s State) ValidAsReported() bool { return stateTable[s].validAsReported }

// ValidAsWanted reports whether this state may be set as a wanted state
// by an operator/controller.
func (s State) ValidAsWanted() bool { return stateTable[s].validAsWanted }

// ValidClusterWide reports whether this state is legal as the overall
// cluster state.
func (s State) ValidClusterWide() bool { return stateTable[s].validClusterWide }

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateMaintenance:
		return "Maintenance"
	case StateDown:
		return "Down"
	case StateStopping:
		return "Stopping"
	case StateInitializing:
		return "Initializing"
	case StateRetired:
		return "Retired"
	case StateUp:
		return "Up"
	default:
		return "Invalid"
	}
}

var codeToState = map[byte]State{
	'-': StateUnknown,
	'm': StateMaintenance,
	'd': StateDown,
	's': StateStopping,
	'i': StateInitializing,
	'r': StateRetired,
	'u': StateUp,
}

// ParseState parses a single-character wire code into a State.
func ParseState(code byte) (State, error) {
	if s, ok := codeToState[code]; ok {
		return s, nil
	}
	return StateUnknown, fmt.Errorf("types: unknown state code %q", code)
}

// UseCase names a named set of "up" states used by placement and
// checker policies, e.g. "ui" (up+initializing) or "uim"
// (up+initializing+maintenance).
type UseCase string

const (
	// UpStatesUp is the strictest set: only Up counts.
	UpStatesUp UseCase = "u"
	// UpStatesUpInit additionally accepts Initializing (used by ideal
	// node placement so initializing replicas still count toward
	// redundancy while they catch up).
	UpStatesUpInit UseCase = "ui"
	// UpStatesUpInitMaintenance additionally accepts Maintenance
	// (selectable through the config's cluster up_states).
	UpStatesUpInitMaintenance UseCase = "uim"
)

var upStateTables = map[UseCase]map[State]bool{
	UpStatesUp:                {StateUp: true},
	UpStatesUpInit:            {StateUp: true, StateInitializing: true},
	UpStatesUpInitMaintenance: {StateUp: true, StateInitializing: true, StateMaintenance: true},
}

// Accepts reports whether the named use case's up-state table includes s.
func (u UseCase) Accepts(s State) bool {
	return upStateTables[u][s]
}

// NodeState is the full reported or wanted state of one node: its
// lifecycle State plus the auxiliary fields the cluster state format
// carries per node.
type NodeState struct {
	State State

	// Description is a free-text human reason, only meaningful when
	// State is not the default Up/no-description.
	Description string

	// Capacity scales a storage node's weight in ideal-node placement.
	// Meaningful only for storage nodes; must be > 0.
	Capacity float64

	// InitProgress is in [0,1] and only meaningful when State is
	// Initializing.
	InitProgress float64

	// MinUsedBits is the smallest used-bits count this node is willing
	// to serve, in [1,58].
	MinUsedBits uint8

	// StartTimestamp records when the node most recently transitioned
	// to Up, used to detect restarts.
	StartTimestamp int64
}

// DefaultNodeState is "Up with no description", the implicit default
// that the cluster state wire format omits entries for.
func DefaultNodeState() NodeState {
	return NodeState{State: StateUp, Capacity: 1.0, MinUsedBits: 1}
}

// IsDefault reports whether ns serializes to nothing (spec.md §3: "entries
// equal to the implicit default of Up with no description are omitted").
func (ns NodeState) IsDefault() bool {
	return ns.State == StateUp &&
		ns.Description == "" &&
		ns.InitProgress == 0 &&
		ns.MinUsedBits <= 1 &&
		(ns.Capacity == 0 || ns.Capacity == 1.0)
}

// Validate checks the NodeState's invariants against the node type it is
// being set on, per spec.md §3:
//   - capacity is only meaningful (and must be > 0) for storage nodes
//   - init-progress is only meaningful when State == Initializing
//   - min-used-bits must be in [1,58] when set
func (ns NodeState) Validate(nodeType NodeType) error {
	if !ns.State.ValidAsReported() && !ns.State.ValidAsWanted() {
		return fmt.Errorf("types: %w: state %s is not valid for any node", ErrInvalidState, ns.State)
	}
	if nodeType == NodeTypeDistributor && ns.Capacity != 0 && ns.Capacity != 1.0 {
		return fmt.Errorf("types: %w: capacity only meaningful for storage nodes", ErrInvalidState)
	}
	if nodeType == NodeTypeStorage && ns.Capacity <= 0 {
		return fmt.Errorf("types: %w: storage node capacity must be > 0", ErrInvalidState)
	}
	if ns.State != StateInitializing && ns.InitProgress != 0 {
		return fmt.Errorf("types: %w: init-progress only meaningful while Initializing", ErrInvalidState)
	}
	if ns.InitProgress < 0 || ns.InitProgress > 1 {
		return fmt.Errorf("types: %w: init-progress must be in [0,1]", ErrInvalidState)
	}
	if ns.MinUsedBits != 0 && (ns.MinUsedBits < 1 || ns.MinUsedBits > 58) {
		return fmt.Errorf("types: %w: min-used-bits must be in [1,58]", ErrInvalidState)
	}
	return nil
}

// ErrInvalidState is returned by NodeState.Validate and any state setter
// called with a state invalid for its target node type (spec.md §7:
// InvalidState, a programmer error rather than a recoverable condition).
var ErrInvalidState = fmt.Errorf("invalid state")

// NodeSupportedFeatures is an immutable, copy-on-write set of per-node
// capability bits. The zero value has every capability false, matching
// spec.md's "defaults all-false".
type NodeSupportedFeatures struct {
	UnorderedMergeChaining         bool
	TwoPhaseRemoveLocation         bool
	NoImplicitIndexingOfActive     bool
}

// FeatureRepo is an immutable map from Node to its supported features.
// Updates never mutate in place; With returns a new repo.
type FeatureRepo struct {
	byNode map[Node]NodeSupportedFeatures
}

// NewFeatureRepo returns an empty repo.
func NewFeatureRepo() FeatureRepo {
	return FeatureRepo{byNode: map[Node]NodeSupportedFeatures{}}
}

// Get returns the features for n, or the all-false zero value if unknown.
func (r FeatureRepo) Get(n Node) NodeSupportedFeatures {
	return r.byNode[n]
}

// With returns a new FeatureRepo identical to r except that n now maps
// to features. r itself is never modified.
func (r FeatureRepo) With(n Node, features NodeSupportedFeatures) FeatureRepo {
	next := make(map[Node]NodeSupportedFeatures, len(r.byNode)+1)
	for k, v := range r.byNode {
		next[k] = v
	}
	next[n] = features
	return FeatureRepo{byNode: next}
}
