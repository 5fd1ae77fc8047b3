// Package merge implements the MergeThrottler (spec.md §4.2): per-node
// admission control for MergeBucketCommands, bounding how many merges
// a storage node participates in concurrently and forwarding each
// command along its target chain until the node responsible for
// executing it locally is reached.
//
// Transport (how a Command physically reaches the next hop) and
// persistence (how a merge is actually executed against stored data)
// are external collaborators per spec.md §1; Throttler depends on them
// only through the Forwarder and Persistence interfaces.
package merge
