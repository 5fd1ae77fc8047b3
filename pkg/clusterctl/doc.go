// Package clusterctl publishes ClusterState and Distribution snapshots
// across a replica set via Raft, generalizing the teacher's
// pkg/manager (Raft-replicated node/service state) to cluster-state
// and distribution-config commands (spec.md §5: "the published
// snapshot is the single source of truth every distributor reasons
// against").
package clusterctl
