package microbench

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulated returns a ManualClock that advances 10ns per read, and an operation that
// advances it by costNs per call.
func simulated(costNs int64) (*ManualClock, func() bool) {
	clock := &ManualClock{Step: 10}
	return clock, func() bool {
		clock.Advance(costNs)
		return true
	}
}

var simulatedParams = GatherParams{
	MaxTimeNs:    10_000,
	WarmUpNs:     1_000,
	BatchTimeNs:  2_000,
	MinBatchSize: 1,
	MinEndChecks: 5,
}

func TestGatherDeterministic(t *testing.T) {
	// Warm-up: batches of 1 call take 110ns and advance the clock 120ns (the extra read).
	// The 9th batch crosses 1000ns (elapsed=1080): mean estimate = 110, batch size =
	// 9*8920 / (1080*5) = 14. Then batches of 14 calls take 1410ns until elapsed > 10000,
	// which happens on the 7th one.
	clock, op := simulated(100)
	stats := Gather(clock, op, simulatedParams)
	assert.Equal(t, int64(14), stats.BatchSize)
	assert.Equal(t, int64(7), stats.BatchCount)
	assert.Equal(t, int64(110), stats.MeanEstimate)
	assert.Equal(t, int64(7*1300), stats.TimeSum)
	assert.Equal(t, float64(7*1300*1300), stats.SquaredTimeSum)
	assert.Equal(t, int64(1300), stats.MinBatchDelta)
	assert.Equal(t, int64(1300), stats.MaxBatchDelta)
	assert.Zero(t, stats.Rejected)

	// Same readings, same statistics.
	clock2, op2 := simulated(100)
	assert.Equal(t, stats, Gather(clock2, op2, simulatedParams))

	r := Reduce(stats, 1)
	require.NoError(t, r.Validate())
	assert.Equal(t, int64(14), r.BatchSize)
	assert.Equal(t, int64(98), r.Iterations)
	assert.Equal(t, int64(7), r.Batches)
	assert.InDelta(t, 9870.0/98.0/1e6, r.MeanMs, 1e-12)
	assert.InDelta(t, r.MeanMs, r.MinMs, 1e-12)
	assert.InDelta(t, r.MeanMs, r.MaxMs, 1e-12)
	assert.Zero(t, r.DeviationMs)
}

func TestGatherNoWarmUp(t *testing.T) {
	// WarmUpNs beyond the budget: the batch size is never re-tuned.
	clock, op := simulated(100)
	p := simulatedParams
	p.WarmUpNs = p.MaxTimeNs + 1
	stats := Gather(clock, op, p)
	assert.Equal(t, int64(1), stats.BatchSize)
	assert.Zero(t, stats.MeanEstimate)
	// 120ns per batch, stops when elapsed > 10000: 84 batches.
	assert.Equal(t, int64(84), stats.BatchCount)
	assert.Equal(t, int64(84*110), stats.TimeSum)

	// Negative warm-up is also out of range.
	clock, op = simulated(100)
	p.WarmUpNs = -5
	assert.Equal(t, stats, Gather(clock, op, p))
}

func TestGatherZeroBudget(t *testing.T) {
	clock, op := simulated(100)
	p := simulatedParams
	p.MaxTimeNs = 0
	stats := Gather(clock, op, p)
	assert.Equal(t, int64(1), stats.BatchCount)
	assert.Equal(t, int64(1), stats.BatchSize)
}

func TestGatherDefaultsAndClamps(t *testing.T) {
	clock, op := simulated(100)
	p := simulatedParams
	p.MinBatchSize = 0
	p.MinEndChecks = 0
	p.BatchTimeNs = -3
	stats := Gather(clock, op, p)
	// BatchTimeNs clamped to 1 makes num_checks huge, and the batch size falls to the minimum.
	assert.Equal(t, int64(DefaultMinBatchSize), stats.BatchSize)
	assert.Equal(t, int64(110), stats.MeanEstimate)
}

func TestGatherMinBatchSize(t *testing.T) {
	clock, op := simulated(100)
	p := simulatedParams
	p.MinBatchSize = 20
	stats := Gather(clock, op, p)
	assert.GreaterOrEqual(t, stats.BatchSize, int64(20))
	assert.Equal(t, int64(0), stats.TimeSum%stats.BatchCount, "all batches have the same duration")
}

func TestGatherAllRejected(t *testing.T) {
	clock := &ManualClock{Step: 10}
	op := func() bool {
		clock.Advance(100)
		return false
	}
	stats := Gather(clock, op, simulatedParams)
	assert.Zero(t, stats.BatchCount)
	assert.Zero(t, stats.TimeSum)
	assert.Zero(t, stats.MeanEstimate)
	// 9 warm-up batches plus 75 more of size 1 (the re-tune with no data keeps the minimum).
	assert.Equal(t, int64(84), stats.Rejected)

	r := Reduce(stats, 1)
	require.NoError(t, r.Validate())
	assert.Equal(t, Result{BatchSize: 1, Rejected: 84}, r)
}

// TestGatherRejectionKeepsRetuneHistory checks the chosen behavior for rejected samples:
// they are excluded from the statistics, but they don't reset or delay the re-tune, which
// happens at the warm-up deadline using only the accepted batches.
func TestGatherRejectionKeepsRetuneHistory(t *testing.T) {
	clock := &ManualClock{Step: 10}
	calls := 0
	op := func() bool {
		calls++
		clock.Advance(100)
		return calls > 5
	}
	stats := Gather(clock, op, simulatedParams)
	assert.Equal(t, int64(5), stats.Rejected)
	assert.Equal(t, int64(110), stats.MeanEstimate)
	// Re-tuned at elapsed=1080 with 4 accepted iterations: 4*8920 / (1080*5) = 6.
	assert.Equal(t, int64(6), stats.BatchSize)
	// Batches of 6 take 610ns and advance 620ns: 15 of them until elapsed > 10000.
	assert.Equal(t, int64(15), stats.BatchCount)
	assert.Equal(t, int64(15*(610-110)), stats.TimeSum)
}

// TestGatherSlowWarmUp has a warm-up slower than the steady state, so every batch after the
// re-tune is faster than the mean estimate and all the deltas are negative.
func TestGatherSlowWarmUp(t *testing.T) {
	clock := &ManualClock{Step: 10}
	calls := 0
	op := func() bool {
		calls++
		if calls <= 3 {
			clock.Advance(300)
		} else {
			clock.Advance(100)
		}
		return true
	}
	p := GatherParams{MaxTimeNs: 10_000, WarmUpNs: 1_000, BatchTimeNs: 1, MinBatchSize: 1, MinEndChecks: 5}
	stats := Gather(clock, op, p)
	// Warm-up batches take 310, 310, 310 and 110ns; the 4th one ends at elapsed=1080.
	// Mean estimate = 1040/4 = 260, and the batch size stays at 1. Then batches of 110ns
	// advance the clock 120ns each: 75 of them until elapsed > 10000.
	assert.Equal(t, int64(260), stats.MeanEstimate)
	assert.Equal(t, int64(1), stats.BatchSize)
	assert.Equal(t, int64(75), stats.BatchCount)
	assert.Equal(t, int64(-150), stats.MinBatchDelta)
	assert.Equal(t, int64(-150), stats.MaxBatchDelta)
	assert.Equal(t, int64(75*-150), stats.TimeSum)

	r := Reduce(stats, 1)
	require.NoError(t, r.Validate())
	assert.InDelta(t, 110e-6, r.MeanMs, 1e-15)
	assert.InDelta(t, 110e-6, r.MinMs, 1e-15)
	assert.InDelta(t, 110e-6, r.MaxMs, 1e-15)
	assert.Zero(t, r.DeviationMs)
}

func TestGatherPartialRejectionDiscardsWholeBatch(t *testing.T) {
	clock := &ManualClock{Step: 10}
	calls := 0
	op := func() bool {
		calls++
		clock.Advance(100)
		return calls%7 != 0
	}
	p := simulatedParams
	p.MinBatchSize = 3
	p.WarmUpNs = 0
	stats := Gather(clock, op, p)
	assert.Greater(t, stats.Rejected, int64(0))
	// Every accepted batch is exactly 3 calls + 1 read, rejected ones are not folded in.
	assert.Equal(t, int64(310), stats.MinBatchDelta)
	assert.Equal(t, int64(310), stats.MaxBatchDelta)
	assert.Equal(t, int64(calls)/3, stats.BatchCount+stats.Rejected)
}

func TestGatherInvariantsRandomized(t *testing.T) {
	for seed := range uint64(50) {
		rng := rand.New(rand.NewPCG(seed, 17))
		clock := &ManualClock{Step: 1 + rng.Int64N(50)}
		op := func() bool {
			clock.Advance(rng.Int64N(300))
			return rng.IntN(20) != 0
		}
		p := GatherParams{
			MaxTimeNs:    20_000 + rng.Int64N(50_000),
			WarmUpNs:     rng.Int64N(5_000),
			BatchTimeNs:  rng.Int64N(3_000),
			MinBatchSize: 1 + rng.Int64N(4),
			MinEndChecks: 1 + rng.Int64N(8),
		}
		stats := Gather(clock, op, p)
		require.GreaterOrEqual(t, stats.BatchSize, p.MinBatchSize, "seed %d", seed)
		require.LessOrEqual(t, stats.MinBatchDelta*stats.BatchCount, stats.TimeSum, "seed %d", seed)
		require.GreaterOrEqual(t, stats.MaxBatchDelta*stats.BatchCount, stats.TimeSum, "seed %d", seed)
		if stats.BatchCount > 0 {
			require.LessOrEqual(t, stats.MinBatchDelta, stats.MaxBatchDelta, "seed %d", seed)
			require.Greater(t, stats.MinBatchDelta, maxDeltaSentinel, "seed %d", seed)
			require.Less(t, stats.MaxBatchDelta, minDeltaSentinel, "seed %d", seed)
		}
		for _, cpi := range []int64{1, 3} {
			r := Reduce(stats, cpi)
			require.NoError(t, r.Validate(), "seed %d, calls per invocation %d", seed, cpi)
		}
	}
}

func TestNextBatchSize(t *testing.T) {
	assert.Equal(t, int64(14), nextBatchSize(9, 8920, 1080, 5, 1))
	assert.Equal(t, int64(20), nextBatchSize(9, 8920, 1080, 5, 20))
	assert.Equal(t, int64(3), nextBatchSize(0, 0, 0, 0, 3))

	// Adversarial inputs: never below the minimum, never a division by zero.
	values := []int64{math.MinInt32, -1, 0, 1, 2, 1000, math.MaxInt32}
	for _, iters := range values {
		for _, remaining := range values {
			for _, elapsed := range values {
				for _, numChecks := range []int64{-1, 0, 1, 5} {
					for _, minBatchSize := range []int64{1, 7} {
						got := nextBatchSize(iters, remaining, elapsed, numChecks, minBatchSize)
						require.GreaterOrEqual(t, got, minBatchSize,
							"nextBatchSize(%d, %d, %d, %d, %d)", iters, remaining, elapsed, numChecks, minBatchSize)
					}
				}
			}
		}
	}
}

func TestGatherQuantiles(t *testing.T) {
	clock, op := simulated(100)
	p := simulatedParams
	p.Quantiles = []float64{0.05, 0.99}
	stats := Gather(clock, op, p)
	require.NotNil(t, stats.perCall)
	// Only the batches after the re-tune are in the estimator.
	assert.Equal(t, 7, stats.perCall.Samples())

	r := Reduce(stats, 1)
	perCallMs := 1410.0 / 14.0 / 1e6
	assert.InDelta(t, perCallMs, r.MedianMs, 1e-12)
	require.Len(t, r.QuantilesMs, 2)
	for _, q := range r.QuantilesMs {
		assert.InDelta(t, perCallMs, q, 1e-12)
	}

	// Without quantiles no estimator is built.
	clock, op = simulated(100)
	assert.Nil(t, Gather(clock, op, simulatedParams).perCall)
}
