package microbench

import (
	"fmt"
	"math"

	"github.com/streadway/quantile"
)

// DefaultCalibrationSamples is the number of back-to-back clock reads used by NewSession.
const DefaultCalibrationSamples = 1000

// calibrationWarmUpSamples are taken and discarded before the real calibration,
// so the clock's code path is hot.
const calibrationWarmUpSamples = 100

// ClockStats describes the cost of reading a Clock, measured as the difference
// between two back-to-back reads. All values are in nanoseconds.
type ClockStats struct {
	Samples                int
	Min, Max, Mean, Median int64

	// Accuracy is the smallest batch duration that can be meaningfully measured with this clock.
	// It is always >= 1.
	Accuracy int64
}

// String implements fmt.Stringer.
func (s ClockStats) String() string {
	return fmt.Sprintf("accuracy=%dns (samples=%d, min=%dns, max=%dns, mean=%dns, median=%dns)",
		s.Accuracy, s.Samples, s.Min, s.Max, s.Mean, s.Median)
}

// Calibrate estimates the overhead and jitter of clock by taking samples pairs
// of back-to-back reads.
//
// Accuracy is the smaller of the mean and the median: the median is not skewed by
// preemptions, but it is discarded when it is 0, since a clock read can't be free.
// A final 0 is clamped to 1, so it can safely be used as a divisor.
func Calibrate(clock Clock, samples int) ClockStats {
	if samples < 1 {
		samples = 1
	}
	estimator := quantile.New(quantile.Known(0.50, 0.001))
	stats := ClockStats{
		Samples: samples,
		Min:     math.MaxInt64,
		Max:     math.MinInt64,
	}
	var sum int64
	for range samples {
		from := clock.Now()
		to := clock.Now()
		diff := to - from
		KeepAlive(diff)

		sum += diff
		stats.Min = min(stats.Min, diff)
		stats.Max = max(stats.Max, diff)
		estimator.Add(float64(diff))
	}
	stats.Mean = sum / int64(samples)
	stats.Median = int64(estimator.Get(0.50))

	stats.Accuracy = stats.Mean
	if stats.Median > 0 && stats.Median < stats.Mean {
		stats.Accuracy = stats.Median
	}
	if stats.Accuracy <= 0 {
		stats.Accuracy = 1
	}
	return stats
}

// calibrateWithWarmUp runs a throw-away calibration before the real one.
func calibrateWithWarmUp(clock Clock, samples int) ClockStats {
	_ = Calibrate(clock, calibrationWarmUpSamples)
	return Calibrate(clock, samples)
}
