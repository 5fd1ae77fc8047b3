// Package distributor wires the topology, cluster-state, bucket-
// database and state-checker pipeline together into the per-node main
// loop spec.md §5 describes: single-threaded, non-blocking bucket-DB
// scans that hand the resulting maintenance operations off to either
// the MergeThrottler or a pluggable Executor.
package distributor
