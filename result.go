package microbench

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Result of one benchmark. Times are per call of the measured operation, in milliseconds.
type Result struct {
	MeanMs      float64
	DeviationMs float64
	MinMs       float64
	MaxMs       float64

	// BatchSize is the number of calls coalesced into one timed sample, including the
	// calls-per-invocation multiplier.
	BatchSize int64

	// Iterations is the total number of calls that contributed to the statistics.
	Iterations int64

	// Batches is the number of accepted timed samples; Rejected the number discarded.
	Batches, Rejected int64

	// MedianMs and QuantilesMs are estimates over the per-call average of each batch.
	// They are only set when quantiles were requested, and QuantilesMs is aligned with them.
	MedianMs    float64
	QuantilesMs []float64
}

// Mean returns MeanMs as a time.Duration, truncated to whole nanoseconds.
func (r Result) Mean() time.Duration { return msToDuration(r.MeanMs) }

// Deviation returns DeviationMs as a time.Duration.
func (r Result) Deviation() time.Duration { return msToDuration(r.DeviationMs) }

// Min returns MinMs as a time.Duration.
func (r Result) Min() time.Duration { return msToDuration(r.MinMs) }

// Max returns MaxMs as a time.Duration.
func (r Result) Max() time.Duration { return msToDuration(r.MaxMs) }

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("mean=%s ±%s [min=%s, max=%s] batch=%d iters=%d",
		PrettyPrintMs(r.MeanMs), PrettyPrintMs(r.DeviationMs),
		PrettyPrintMs(r.MinMs), PrettyPrintMs(r.MaxMs), r.BatchSize, r.Iterations)
}

// Validate checks the invariants every Result must satisfy:
// 0 <= MinMs <= MeanMs <= MaxMs, DeviationMs >= 0 and non-negative counts, with no NaNs.
func (r Result) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"MeanMs", r.MeanMs}, {"DeviationMs", r.DeviationMs}, {"MinMs", r.MinMs}, {"MaxMs", r.MaxMs},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return errors.Errorf("%s is not a finite number: %v", f.name, f.value)
		}
		if f.value < 0 {
			return errors.Errorf("%s is negative: %g", f.name, f.value)
		}
	}
	if r.MinMs > r.MeanMs || r.MeanMs > r.MaxMs {
		return errors.Errorf("expected MinMs <= MeanMs <= MaxMs, got %g, %g, %g", r.MinMs, r.MeanMs, r.MaxMs)
	}
	if r.Iterations < 0 || r.BatchSize < 0 || r.Batches < 0 || r.Rejected < 0 {
		return errors.Errorf("negative counts: iterations=%d, batch size=%d, batches=%d, rejected=%d",
			r.Iterations, r.BatchSize, r.Batches, r.Rejected)
	}
	return nil
}
