package merge

import (
	"time"

	"github.com/cuemby/stratum/pkg/bucket"
)

// ReplyCode enumerates the outcomes a merge command can be answered
// with (spec.md §6).
type ReplyCode int

const (
	ReplyOK ReplyCode = iota
	ReplyBusy
	ReplyWrongDistribution
	ReplyRejected
	ReplyAborted
	ReplyNotConnected
	ReplyMessageIgnored
)

func (c ReplyCode) String() string {
	switch c {
	case ReplyOK:
		return "OK"
	case ReplyBusy:
		return "Busy"
	case ReplyWrongDistribution:
		return "WrongDistribution"
	case ReplyRejected:
		return "Rejected"
	case ReplyAborted:
		return "Aborted"
	case ReplyNotConnected:
		return "NotConnected"
	case ReplyMessageIgnored:
		return "MessageIgnored"
	default:
		return "Unknown"
	}
}

// Reply is the outcome of a Command, unwound back along the chain to
// the original caller.
type Reply struct {
	Code ReplyCode

	// ClusterStateVersion is meaningful (and required) on
	// ReplyWrongDistribution: the replying node's own version, so the
	// caller knows what version to retry with.
	ClusterStateVersion uint32

	Reason string
}

// NodeRef is one participant in a merge's node list: a storage node
// index plus whether it only contributes data without becoming a
// post-merge replica target.
type NodeRef struct {
	Index      uint16
	SourceOnly bool
}

// Command is a MergeBucketCommand (spec.md §6): wire-compatible with a
// pre-existing cluster's merge protocol.
type Command struct {
	BucketID            bucket.ID
	Nodes               []NodeRef
	MaxTimestamp        uint64
	ClusterStateVersion uint32

	// Chain is the list of node indices that have already processed
	// this command, in the order they forwarded it.
	Chain []uint16

	Priority uint8
	Timeout  time.Duration
}

// targets returns the ascending-index sequence of non-source-only
// nodes: the canonical chain order (spec.md §4.2).
func (c Command) targets() []uint16 {
	var out []uint16
	for _, n := range c.Nodes {
		if !n.SourceOnly {
			out = append(out, n.Index)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// containsIndex reports whether idx appears anywhere in c's node list
// (target or source-only).
func (c Command) containsIndex(idx uint16) bool {
	for _, n := range c.Nodes {
		if n.Index == idx {
			return true
		}
	}
	return false
}

// sourceOnlyAt reports whether idx participates in c strictly as a
// source-only contributor.
func (c Command) sourceOnlyAt(idx uint16) bool {
	for _, n := range c.Nodes {
		if n.Index == idx {
			return n.SourceOnly
		}
	}
	return false
}

// isExecutorAt reports whether selfIndex is the node responsible for
// executing c locally: every non-source-only node besides itself must
// already be in the chain (spec.md §4.2: "A node is the executor iff
// every non-source-only node except itself is already in the chain").
func (c Command) isExecutorAt(selfIndex uint16) bool {
	chainSet := chainSet(c.Chain)
	for _, t := range c.targets() {
		if t != selfIndex && !chainSet[t] {
			return false
		}
	}
	return true
}

// nextHop returns the next target (ascending, excluding selfIndex and
// anything already in the chain) to forward c to, and whether one
// exists.
func (c Command) nextHop(selfIndex uint16) (uint16, bool) {
	chainSet := chainSet(c.Chain)
	for _, t := range c.targets() {
		if t == selfIndex {
			continue
		}
		if !chainSet[t] {
			return t, true
		}
	}
	return 0, false
}

func chainSet(chain []uint16) map[uint16]bool {
	out := make(map[uint16]bool, len(chain))
	for _, n := range chain {
		out[n] = true
	}
	return out
}

// withAppendedChain returns a copy of c with selfIndex appended to the
// chain, for forwarding onward (spec.md §4.2: "Forwarding preserves
// priority, cluster-state version, and timeout; appends this node to
// the chain").
func (c Command) withAppendedChain(selfIndex uint16) Command {
	next := c
	next.Chain = append(append([]uint16(nil), c.Chain...), selfIndex)
	return next
}

// sameCycle reports whether c and other are a bit-identical resend of
// the same merge cycle: same bucket, same node list, same max
// timestamp, same cluster-state version. Chain is deliberately
// excluded, since a resend may have
// traveled a different path.
func (c Command) sameCycle(other Command) bool {
	if c.BucketID != other.BucketID || c.MaxTimestamp != other.MaxTimestamp || c.ClusterStateVersion != other.ClusterStateVersion {
		return false
	}
	if len(c.Nodes) != len(other.Nodes) {
		return false
	}
	for i := range c.Nodes {
		if c.Nodes[i] != other.Nodes[i] {
			return false
		}
	}
	return true
}
