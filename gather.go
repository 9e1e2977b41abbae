package microbench

import (
	"log/slog"
	"slices"

	"github.com/streadway/quantile"
)

// Defaults for GatherParams.
const (
	DefaultMinBatchSize = 1
	DefaultMinEndChecks = 5
)

// DefaultTolerance of the quantile estimates. See Options.WithTolerance.
const DefaultTolerance = 0.001

// minDeltaSentinel and maxDeltaSentinel lie beyond any real batch delta, so the first
// sample replaces them. Deltas can be negative once the mean estimate is set.
const (
	minDeltaSentinel = int64(1) << 62
	maxDeltaSentinel = -minDeltaSentinel
)

// GatherParams configures Gather. All times are in nanoseconds.
type GatherParams struct {
	// MaxTimeNs is the total time budget. Must be >= 0.
	MaxTimeNs int64

	// WarmUpNs is the point at which the batch size is re-tuned. Values <= 0 or
	// larger than MaxTimeNs mean "re-tune at MaxTimeNs", that is, never.
	WarmUpNs int64

	// BatchTimeNs is the target minimum duration of one batch, usually a multiple of
	// the clock accuracy. Values <= 0 are clamped to 1.
	BatchTimeNs int64

	// MinBatchSize must be >= 1. Zero selects DefaultMinBatchSize.
	MinBatchSize int64

	// MinEndChecks is the minimum number of batches run after the re-tune. Must be >= 1.
	// Zero selects DefaultMinEndChecks.
	MinEndChecks int64

	// Quantiles of the per-call time to estimate, in the range [0, 1]. A non-nil value,
	// even empty, enables the estimation of the median.
	Quantiles []float64

	// Tolerance of the quantile estimates. Zero selects DefaultTolerance.
	Tolerance float64

	// Logger receives the re-tune decision at debug level. Optional.
	Logger *slog.Logger
}

// RunningStats is the raw accumulator filled by Gather and consumed by Reduce.
//
// Sums are kept relative to MeanEstimate (a per-call time): each accepted batch contributes
// delta = batchDuration - MeanEstimate. At all times
// MinBatchDelta*BatchCount <= TimeSum <= MaxBatchDelta*BatchCount.
type RunningStats struct {
	BatchSize  int64
	BatchCount int64

	TimeSum        int64
	SquaredTimeSum float64
	MinBatchDelta  int64
	MaxBatchDelta  int64
	MeanEstimate   int64

	// Rejected counts the batches of the whole session discarded because the
	// operation reported failure. It is not reset by the re-tune.
	Rejected int64

	quantiles []float64
	tolerance float64
	perCall   *quantile.Estimator
}

func newRunningStats(p GatherParams) RunningStats {
	s := RunningStats{
		BatchSize:     p.MinBatchSize,
		MinBatchDelta: minDeltaSentinel,
		MaxBatchDelta: maxDeltaSentinel,
	}
	if p.Quantiles != nil {
		s.quantiles = slices.Clone(p.Quantiles)
		s.tolerance = p.Tolerance
		s.perCall = newEstimator(s.quantiles, s.tolerance)
	}
	return s
}

func newEstimator(quantiles []float64, tolerance float64) *quantile.Estimator {
	estimates := make([]quantile.Estimate, 0, len(quantiles)+1)
	estimates = append(estimates, quantile.Known(0.50, tolerance))
	for _, q := range quantiles {
		estimates = append(estimates, quantile.Known(q, tolerance))
	}
	return quantile.New(estimates...)
}

// add folds one accepted batch into the sums.
func (s *RunningStats) add(batchDuration int64) {
	delta := batchDuration - s.MeanEstimate
	s.TimeSum += delta
	s.SquaredTimeSum += float64(delta) * float64(delta)
	s.BatchCount++
	s.MinBatchDelta = min(s.MinBatchDelta, delta)
	s.MaxBatchDelta = max(s.MaxBatchDelta, delta)
	if s.perCall != nil {
		s.perCall.Add(float64(batchDuration) / float64(s.BatchSize))
	}
}

// reset discards everything gathered so far, except the batch size, the mean estimate
// and the rejection count.
func (s *RunningStats) reset() {
	s.BatchCount = 0
	s.TimeSum = 0
	s.SquaredTimeSum = 0
	s.MinBatchDelta = minDeltaSentinel
	s.MaxBatchDelta = maxDeltaSentinel
	if s.perCall != nil {
		s.perCall = newEstimator(s.quantiles, s.tolerance)
	}
}

// retune sets the mean estimate from the data gathered so far and picks the batch size
// that fills the remaining time with at least MinEndChecks batches. Then it resets the sums.
func (s *RunningStats) retune(elapsed int64, p GatherParams) {
	iters := s.BatchCount * s.BatchSize
	if iters <= 0 {
		iters = 1
	}
	s.MeanEstimate = (s.TimeSum + s.MeanEstimate*s.BatchCount) / iters

	remaining := p.MaxTimeNs - elapsed
	numChecks := max(p.MinEndChecks, remaining/p.BatchTimeNs)
	s.BatchSize = nextBatchSize(iters, remaining, elapsed, numChecks, p.MinBatchSize)
	if p.Logger != nil {
		p.Logger.Debug("microbench: batch size re-tuned",
			slog.Int64("batch_size", s.BatchSize),
			slog.Int64("num_checks", numChecks),
			slog.Int64("mean_estimate_ns", s.MeanEstimate),
			slog.Int64("remaining_ns", remaining),
			slog.Int64("warm_up_iters", iters))
	}
	s.reset()
}

// nextBatchSize extrapolates the observed rate (iters in elapsed ns) over the remaining ns
// and splits it into numChecks batches. It never returns less than minBatchSize.
func nextBatchSize(iters, remaining, elapsed, numChecks, minBatchSize int64) int64 {
	den := elapsed * numChecks
	if den <= 0 {
		den = 1
	}
	size := int64(float64(iters) * float64(remaining) / float64(den))
	return max(size, minBatchSize)
}

// Gather runs op in timed batches until p.MaxTimeNs has elapsed, and returns the
// accumulated statistics.
//
// It starts with batches of p.MinBatchSize calls. Once p.WarmUpNs has elapsed, the batch size
// is re-tuned once so each batch lasts about p.BatchTimeNs (and at least MinEndChecks batches
// fit in the rest of the budget), the statistics gathered so far are discarded, and the run
// continues at that size until the budget is over. The last batch may overrun the budget.
//
// If op returns false, the whole batch is rejected: its timing is not folded into the sums.
// A rejected batch still counts against the time budget and does not delay the re-tune.
//
// op is never interrupted: an op that doesn't return hangs Gather.
func Gather(clock Clock, op func() bool, p GatherParams) RunningStats {
	if p.MinBatchSize == 0 {
		p.MinBatchSize = DefaultMinBatchSize
	}
	if p.MinEndChecks == 0 {
		p.MinEndChecks = DefaultMinEndChecks
	}
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultTolerance
	}
	assertf(p.MinBatchSize > 0, "MinBatchSize must be > 0, got %d", p.MinBatchSize)
	assertf(p.MinEndChecks > 0, "MinEndChecks must be > 0, got %d", p.MinEndChecks)
	assertf(p.MaxTimeNs >= 0, "MaxTimeNs must be >= 0, got %d", p.MaxTimeNs)
	p.MinBatchSize = max(p.MinBatchSize, 1)
	p.MinEndChecks = max(p.MinEndChecks, 1)
	if p.BatchTimeNs <= 0 {
		p.BatchTimeNs = 1
	}
	deadline := p.WarmUpNs
	if deadline <= 0 || deadline > p.MaxTimeNs {
		deadline = p.MaxTimeNs
	}

	stats := newRunningStats(p)
	start := clock.Now()
	for {
		accepted := true
		MemoryBarrier()
		before := clock.Now()
		for range stats.BatchSize {
			MemoryBarrier()
			ok := op()
			KeepAlive(ok)
			accepted = accepted && ok
		}
		MemoryBarrier()
		after := clock.Now()
		elapsed := after - start

		if accepted {
			stats.add(after - before)
		} else {
			stats.Rejected++
		}
		if elapsed <= deadline {
			continue
		}
		if elapsed > p.MaxTimeNs {
			return stats
		}
		stats.retune(elapsed, p)
		deadline = p.MaxTimeNs
	}
}
