// Package topology implements the hierarchical group tree and
// consistent-hash-like ideal-node placement described in spec.md §3,
// §4.1: Group, RedundancyGroupDistribution, Distribution, the Lehmer
// PRNG, and IdealNodes.
//
// A Distribution is immutable once built; ParseDistribution and
// NewDistribution both produce one from a group tree, and its raw
// serialized config text is its identity and equality (Distribution.Equal).
package topology
