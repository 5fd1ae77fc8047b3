// Package clusterstate implements the versioned cluster-state snapshot
// described in spec.md §3-4.4: every node's lifecycle state (one state
// per node), the overall cluster state, and the distribution-bit count,
// plus the wire format used to publish and persist it.
//
// A ClusterState is immutable; every mutator returns a new value, so a
// holder can swap a pointer on publish and readers never take a lock.
// Bundle groups a baseline ClusterState with per-bucket-space overrides
// for the cases where global documents need a different view of which
// nodes are down (spec.md §4.4).
package clusterstate
