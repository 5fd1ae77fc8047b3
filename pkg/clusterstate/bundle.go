package clusterstate

// Bundle groups the baseline cluster state with any per-bucket-space
// override (spec.md §4.4: "a bundle is the unit actually published: a
// baseline plus a state per non-default bucket space, since global
// documents may need a different down-node view than default
// documents").
type Bundle struct {
	baseline ClusterState
	derived  map[string]ClusterState

	// FeedBlocked signals that feed traffic must be rejected cluster-wide
	// regardless of per-space states (e.g. a cluster-wide resource
	// exhaustion condition).
	FeedBlocked bool

	// DeferredActivation marks a bundle computed ahead of the version it
	// will eventually carry — checkers may use it to decide whether a
	// published state is actually live yet.
	DeferredActivation bool
}

// NewBundle returns a bundle with only a baseline and no per-space
// overrides.
func NewBundle(baseline ClusterState) Bundle {
	return Bundle{baseline: baseline, derived: map[string]ClusterState{}}
}

// Baseline returns the default-space cluster state.
func (b Bundle) Baseline() ClusterState { return b.baseline }

// ForSpace returns the cluster state that applies to the named bucket
// space: the per-space override if one was set, otherwise the
// baseline.
func (b Bundle) ForSpace(space string) ClusterState {
	if cs, ok := b.derived[space]; ok {
		return cs
	}
	return b.baseline
}

// WithSpace returns a copy of b with space's override cluster state
// replaced.
func (b Bundle) WithSpace(space string, cs ClusterState) Bundle {
	next := b
	next.derived = make(map[string]ClusterState, len(b.derived)+1)
	for k, v := range b.derived {
		next.derived[k] = v
	}
	next.derived[space] = cs
	return next
}

// Version returns the baseline's version, the version the bundle as a
// whole is addressed by.
func (b Bundle) Version() uint32 { return b.baseline.Version() }

// Equal compares two bundles by value across the baseline, every
// override space present in either bundle, and the two signal flags.
func (b Bundle) Equal(other Bundle) bool {
	if b.FeedBlocked != other.FeedBlocked || b.DeferredActivation != other.DeferredActivation {
		return false
	}
	if !b.baseline.Equal(other.baseline) {
		return false
	}
	seen := map[string]bool{}
	for space := range b.derived {
		seen[space] = true
	}
	for space := range other.derived {
		seen[space] = true
	}
	for space := range seen {
		if !b.ForSpace(space).Equal(other.ForSpace(space)) {
			return false
		}
	}
	return true
}
