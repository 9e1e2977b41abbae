package microbench

import (
	"math"
)

const nsPerMs = float64(1_000_000)

// Reduce converts the statistics accumulated by Gather into per-call figures.
//
// callsPerInvocation accounts for operations that internally repeat the measured code:
// reported times are divided by it, and iterations multiplied by it. Values < 1 are treated as 1.
//
// The deviation is computed at batch level and scaled down to one call with the Central
// Limit Theorem: a batch of k calls is the average of k samples, so its deviation is
// sqrt(k) times smaller than the deviation of a single call. The distances of min and max
// from the mean are scaled up by sqrt(k) for the same reason. The min is clamped to 0, which
// is expected for near-empty operations.
//
// With no accepted batches, every figure is zero.
func Reduce(stats RunningStats, callsPerInvocation int64) Result {
	assertf(stats.MinBatchDelta*stats.BatchCount <= stats.TimeSum, "min must be smaller than sum")
	assertf(stats.MaxBatchDelta*stats.BatchCount >= stats.TimeSum, "max must be bigger than sum")
	if callsPerInvocation < 1 {
		callsPerInvocation = 1
	}

	batchSize := stats.BatchSize * callsPerInvocation
	iters := batchSize * stats.BatchCount
	r := Result{
		BatchSize:  batchSize,
		Iterations: iters,
		Batches:    stats.BatchCount,
		Rejected:   stats.Rejected,
	}

	var batchDeviationMs float64
	if stats.BatchCount > 1 {
		n := float64(stats.BatchCount)
		sum := float64(stats.TimeSum)
		variance := (stats.SquaredTimeSum - sum*sum/n) / (n - 1)
		batchDeviationMs = math.Sqrt(math.Abs(variance)) / nsPerMs
	}

	if iters == 0 {
		return r
	}
	adjustedSum := stats.TimeSum + stats.MeanEstimate*stats.BatchCount
	adjustedMin := stats.MinBatchDelta + stats.MeanEstimate
	adjustedMax := stats.MaxBatchDelta + stats.MeanEstimate
	assertf(adjustedMin*stats.BatchCount <= adjustedSum, "adjusted min must be smaller than sum")
	assertf(adjustedMax*stats.BatchCount >= adjustedSum, "adjusted max must be bigger than sum")

	meanMs := float64(adjustedSum) / (float64(iters) * nsPerMs)
	minMs := float64(adjustedMin) / (float64(batchSize) * nsPerMs)
	maxMs := float64(adjustedMax) / (float64(batchSize) * nsPerMs)

	sqrtBatchSize := math.Sqrt(float64(batchSize))
	if batchSize == 0 {
		sqrtBatchSize = 1
	}
	r.MeanMs = max(meanMs, 0)
	r.DeviationMs = batchDeviationMs / sqrtBatchSize
	// Rounding can leave min or max a few ulps on the wrong side of the mean.
	r.MinMs = max(min(meanMs+(minMs-meanMs)*sqrtBatchSize, r.MeanMs), 0)
	r.MaxMs = max(meanMs+(maxMs-meanMs)*sqrtBatchSize, r.MeanMs)

	if stats.perCall != nil && stats.perCall.Samples() > 0 {
		scale := float64(callsPerInvocation) * nsPerMs
		r.MedianMs = max(stats.perCall.Get(0.5), 0) / scale
		r.QuantilesMs = make([]float64, len(stats.quantiles))
		for ii, q := range stats.quantiles {
			r.QuantilesMs[ii] = max(stats.perCall.Get(q), 0) / scale
		}
	}

	if debugAssertions {
		if err := r.Validate(); err != nil {
			panic(err)
		}
	}
	return r
}
