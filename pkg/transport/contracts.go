package transport

import (
	"context"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/merge"
)

// MergeGateway is the RPC contract a concrete merge.Forwarder
// implementation programs against: deliver a MergeBucketCommand to
// another storage node and get back its reply (spec.md §4.2, §6). A
// real implementation dials nodeIndex's advertised address and encodes
// Command/Reply over the wire; that codec is out of scope here (see
// DESIGN.md).
type MergeGateway interface {
	ForwardMerge(ctx context.Context, nodeIndex uint16, cmd merge.Command) (merge.Reply, error)
}

// BucketDiffRequest describes a content diff between a copy's claimed
// state and the requester's own, the basis of synchronizing a
// SynchronizeAndMove operation (spec.md §4.3.4).
type BucketDiffRequest struct {
	Space        bucket.Space
	BucketID     bucket.ID
	FromChecksum uint32
	FromNode     uint16
	ToNode       uint16
}

// BucketDiffReply carries the computed diff, opaque to this package.
type BucketDiffReply struct {
	Checksum uint32
	Payload  []byte
}

// BucketDiffGateway is the RPC contract for pulling and pushing bucket
// content between nodes.
type BucketDiffGateway interface {
	GetBucketDiff(ctx context.Context, req BucketDiffRequest) (BucketDiffReply, error)
	ApplyBucketDiff(ctx context.Context, req BucketDiffRequest, diff BucketDiffReply) error
}

// SystemStateGateway is the RPC contract for gossiping a cluster-state
// version to a peer, the remote-node counterpart of
// merge.Throttler.SetSystemState (spec.md §4.2).
type SystemStateGateway interface {
	SetSystemState(ctx context.Context, nodeIndex uint16, version uint32) error
}
