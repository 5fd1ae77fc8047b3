/*
Package types defines the primitive data model shared by every other
stratum package: node identity, lifecycle state, and per-node capability
flags.

These are the atoms the rest of the control plane is built from —
clusterstate versions a map of Node to NodeState, topology computes
ideal placements over Nodes, and checkers reason about State.

# Node identity and ordering

A Node is (NodeType, index). NodeType has a total order, Distributor <
Storage, and Node.Compare orders lexicographically by (Type, Index).
Node.Hash packs a node into a single uint32 ((index<<1)|type_bit) for use
as a dense array index where a map would be wasteful.

# State

State is a seven-value enum (Unknown, Maintenance, Down, Stopping,
Initializing, Retired, Up), each carrying a one-character wire code, a
numeric rank used by the wanted-state demotion rule, and validity masks
for whether it may be reported, wanted, or set cluster-wide. UseCase
groups of up-states ("u", "ui", "uim") are used by placement and checker
policies to decide which states count as "the node is serving".

# NodeState and features

NodeState bundles a State with capacity, init progress, and the other
per-node fields the wire format carries; Validate enforces the
type-dependent invariants from spec.md §3 (capacity only for storage
nodes, init-progress only while Initializing). NodeSupportedFeatures and
FeatureRepo track per-node capability bits as an immutable,
copy-on-write map, mirroring the rest of the package's immutable-
snapshot philosophy.
*/
package types
