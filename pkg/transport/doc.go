// Package transport defines the RPC contract boundary between
// distributor nodes: MergeBucketCommand forwarding, ApplyBucketDiff/
// GetBucketDiff for replica content transfer, and SetSystemState for
// cluster-state-version gossip (spec.md §1: "the network transport...
// treated as an external collaborator"). The wire codec itself is out
// of scope and not implemented here — only the Go-level contract each
// side programs against, plus the minimal gRPC health/reflection
// wiring a real node needs to be deployable.
package transport
