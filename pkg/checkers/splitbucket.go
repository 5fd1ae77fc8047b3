package checkers

// SplitBucket implements spec.md §4.3.1: split a bucket that has grown
// past its size thresholds, or that sits below the configured minimal
// split level.
type SplitBucket struct{}

func (SplitBucket) Name() string { return "SplitBucket" }

func (SplitBucket) Check(ctx Context) Result {
	if len(ctx.Entry.Copies) == 0 {
		return NoMaintenance()
	}
	if ctx.Entry.ID.UsedBits >= 58 {
		return NoMaintenance()
	}

	ratio := splitRatio(ctx)
	if ratio > 1.0 {
		op := newOperation(OpSplitBucket, ctx.Space, ctx.Entry.ID)
		op.TargetUsedBits = 58
		op.Reason = "bucket size exceeds split threshold"
		return StoredResult(op, PriorityHigh)
	}

	if ctx.Entry.ID.UsedBits < ctx.Config.MinimalSplitBits {
		op := newOperation(OpSplitBucket, ctx.Space, ctx.Entry.ID)
		op.TargetUsedBits = ctx.Config.MinimalSplitBits
		op.Reason = "used-bits below minimal split level"
		return StoredResult(op, PriorityMedium)
	}

	return NoMaintenance()
}

// splitRatio is the max of {bytes, docs, meta-count/2, file-size/2}
// against their configured thresholds (spec.md §4.3.1).
func splitRatio(ctx Context) float64 {
	ratio := 0.0
	if ctx.Config.SplitByteThreshold > 0 {
		ratio = max(ratio, float64(ctx.Entry.HighestTotalDocSize())/float64(ctx.Config.SplitByteThreshold))
	}
	if ctx.Config.SplitDocThreshold > 0 {
		ratio = max(ratio, float64(ctx.Entry.HighestDocCount())/float64(ctx.Config.SplitDocThreshold))
	}
	if ctx.Config.SplitMetaCountThreshold > 0 {
		ratio = max(ratio, (float64(ctx.Entry.HighestMetaCount())/2)/float64(ctx.Config.SplitMetaCountThreshold))
	}
	if ctx.Config.SplitFileSizeThreshold > 0 {
		ratio = max(ratio, (float64(ctx.Entry.HighestUsedFileSize())/2)/float64(ctx.Config.SplitFileSizeThreshold))
	}
	return ratio
}
