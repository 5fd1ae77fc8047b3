package checkers

import (
	"github.com/cuemby/stratum/pkg/metrics"
)

// Pipeline runs its checkers in order and returns the first one's
// result that isn't NoMaintenance (spec.md §4.3: "once any checker
// emits a result the remainder are short-circuited").
type Pipeline struct {
	checkers []StateChecker
}

// DefaultPipeline returns the checker pipeline in spec.md §4.3's fixed
// order.
func DefaultPipeline() Pipeline {
	return Pipeline{checkers: []StateChecker{
		SplitBucket{},
		JoinBuckets{},
		SplitInconsistentBuckets{},
		SynchronizeAndMove{},
		DeleteExtraCopies{},
		SetBucketState{},
		GarbageCollection{},
	}}
}

// NewPipeline builds a pipeline from an explicit checker list, for
// tests that want to isolate one or a subset of checkers.
func NewPipeline(checkers ...StateChecker) Pipeline {
	return Pipeline{checkers: checkers}
}

// Run evaluates ctx against every checker in order, short-circuiting
// on the first scheduled operation.
func (p Pipeline) Run(ctx Context) Result {
	for _, c := range p.checkers {
		timer := metrics.NewTimer()
		result := c.Check(ctx)
		timer.ObserveDurationVec(metrics.CheckerDuration, c.Name())

		outcome := "no_maintenance"
		if result.HasOperation {
			outcome = "scheduled"
		}
		metrics.CheckerInvocationsTotal.WithLabelValues(c.Name(), outcome).Inc()

		if result.HasOperation {
			metrics.OperationsScheduledTotal.WithLabelValues(c.Name(), result.Priority.String()).Inc()
			return result
		}
	}
	return NoMaintenance()
}
