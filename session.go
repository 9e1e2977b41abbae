package microbench

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultBatchTimeMultiplier is the default ratio between the target batch duration and the
// clock accuracy.
const DefaultBatchTimeMultiplier = 5

// Config of one measurement with Session.Measure. Zero values select the defaults.
type Config struct {
	// MaxTime is the total time budget of the measurement.
	MaxTime time.Duration

	// WarmUp is when the batch size is re-tuned. Values <= 0 select MaxTime/20 + 1ms, and
	// values larger than MaxTime disable the re-tune.
	WarmUp time.Duration

	// CallsPerInvocation is the number of times the operation repeats the measured code
	// internally. Reported times are divided by it. Defaults to 1.
	CallsPerInvocation int64

	// BatchTimeMultiplier times the clock accuracy gives the target batch duration.
	// Defaults to DefaultBatchTimeMultiplier.
	BatchTimeMultiplier int64

	// MinBatchSize and MinEndChecks are passed on to GatherParams.
	MinBatchSize, MinEndChecks int64

	// Quantiles to estimate besides the median, and their tolerance. The median is only
	// estimated if Quantiles is non-nil.
	Quantiles []float64
	Tolerance float64
}

// gatherParams converts the configuration to the nanosecond parameters of Gather,
// for a clock with the given accuracy.
func (c Config) gatherParams(accuracy int64) GatherParams {
	warmUp := c.WarmUp
	if warmUp <= 0 {
		warmUp = c.MaxTime/20 + time.Millisecond
	}
	multiplier := c.BatchTimeMultiplier
	if multiplier <= 0 {
		multiplier = DefaultBatchTimeMultiplier
	}
	return GatherParams{
		MaxTimeNs:    int64(c.MaxTime),
		WarmUpNs:     int64(warmUp),
		BatchTimeNs:  multiplier * accuracy,
		MinBatchSize: c.MinBatchSize,
		MinEndChecks: c.MinEndChecks,
		Quantiles:    slices.Clone(c.Quantiles),
		Tolerance:    c.Tolerance,
	}
}

// Session holds a calibrated clock. It is immutable once created and can be used
// concurrently: each Measure owns its own accumulator. Concurrent measurements do
// compete for CPU, though.
type Session struct {
	clock      Clock
	clockStats ClockStats
	logger     *slog.Logger
}

// NewSession calibrates clock with DefaultCalibrationSamples and returns a Session using it.
func NewSession(clock Clock) *Session {
	return NewSessionWithStats(clock, calibrateWithWarmUp(clock, DefaultCalibrationSamples))
}

// NewSessionWithStats returns a Session using clock with an already known calibration,
// for instance one measured earlier or a fixed one in tests.
func NewSessionWithStats(clock Clock, stats ClockStats) *Session {
	if stats.Accuracy <= 0 {
		stats.Accuracy = 1
	}
	return &Session{clock: clock, clockStats: stats}
}

// WithLogger returns a copy of the Session that logs to logger.
func (s *Session) WithLogger(logger *slog.Logger) *Session {
	s2 := *s
	s2.logger = logger
	return &s2
}

// Clock used by the Session.
func (s *Session) Clock() Clock { return s.clock }

// ClockStats returns the calibration of the Session's clock.
func (s *Session) ClockStats() ClockStats { return s.clockStats }

// Accuracy returns the calibrated clock accuracy in nanoseconds, always >= 1.
func (s *Session) Accuracy() int64 { return s.clockStats.Accuracy }

// Measure benchmarks op with cfg. If op returns false, the batch it belongs to is discarded.
func (s *Session) Measure(op func() bool, cfg Config) Result {
	assertf(cfg.MaxTime >= 0, "MaxTime must be >= 0, got %s", cfg.MaxTime)
	p := cfg.gatherParams(s.clockStats.Accuracy)
	p.Logger = s.logger
	stats := Gather(s.clock, op, p)
	result := Reduce(stats, cfg.CallsPerInvocation)
	if s.logger != nil {
		s.logger.Debug("microbench: measured",
			slog.Float64("mean_ms", result.MeanMs),
			slog.Float64("deviation_ms", result.DeviationMs),
			slog.Int64("batch_size", result.BatchSize),
			slog.Int64("iterations", result.Iterations),
			slog.Int64("rejected", result.Rejected))
	}
	return result
}

// Default returns the process-wide Session on RuntimeClock. It is calibrated on first use.
var Default = sync.OnceValue(func() *Session {
	return NewSession(RuntimeClock{})
})

// Benchmark measures fn for maxTimeMs milliseconds, with the default warm-up of
// maxTimeMs/20 + 1 milliseconds.
func Benchmark(maxTimeMs int64, fn func()) Result {
	return BenchmarkWarmUp(maxTimeMs, maxTimeMs/20+1, fn)
}

// BenchmarkWarmUp measures fn for maxTimeMs milliseconds, re-tuning the batch size after warmUpMs.
//
// A warmUpMs <= 0 selects the default warm-up of maxTimeMs/20 + 1, as Config.WarmUp does: it
// doesn't disable the re-tune. To skip the re-tune, pass a warmUpMs larger than maxTimeMs.
func BenchmarkWarmUp(maxTimeMs, warmUpMs int64, fn func()) Result {
	return Default().Measure(unchecked(fn), Config{
		MaxTime: time.Duration(maxTimeMs) * time.Millisecond,
		WarmUp:  time.Duration(warmUpMs) * time.Millisecond,
	})
}

// BenchmarkChecked measures fn for maxTimeMs milliseconds. Batches in which fn returns false
// are discarded.
func BenchmarkChecked(maxTimeMs int64, fn func() bool) Result {
	return Default().Measure(fn, Config{MaxTime: time.Duration(maxTimeMs) * time.Millisecond})
}

func unchecked(fn func()) func() bool {
	return func() bool {
		fn()
		return true
	}
}
