package topology

import "errors"

// ErrTooFewBucketBits is returned by IdealNodes when the bucket's
// used-bits count is smaller than the cluster's distribution-bit
// count — the bucket hasn't been split enough to be locatable yet
// (spec.md §7).
var ErrTooFewBucketBits = errors.New("topology: bucket has too few used bits for the cluster's distribution bits")

// ErrNoDistributorsAvailable is returned by a distributor lookup when,
// at some level of the group tree, the whole-group-ownership-transfer
// filter skips every child group (spec.md §7). A leaf whose nodes are
// all outside the up-states set yields an empty result, not this error.
var ErrNoDistributorsAvailable = errors.New("topology: no distributors available")
