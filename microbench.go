// Package microbench measures the per-call time of very fast operations, down to the
// nanosecond scale, where the overhead and resolution of the clock are of the same order
// as the work being measured.
//
// The clock is calibrated once per Session. Calls are then coalesced into batches long
// enough to dwarf the clock overhead, and the batch timings are reduced to a per-call mean,
// deviation, min and max, corrected for the batching with the Central Limit Theorem.
//
// Example 1: Measure one function for 100ms:
//
//	r := microbench.Benchmark(100, func() {
//		microbench.KeepAlive(MyFunc(42))
//	})
//	fmt.Println(r)
//
// Example 2: Table of several functions, with the default quantiles:
//
//	testParams := []int{1, 2, 3, 5, 8}
//	testFns := make([]microbench.NamedFunction, len(testParams))
//	for ii, param := range testParams {
//		testFns[ii].Name = fmt.Sprintf("Param=%d", param)
//		testFns[ii].Func = func() {
//			microbench.KeepAlive(MyFunc(param))
//		}
//	}
//	microbench.New(testFns...).Done()
//
// Example 3: Measuring a CGO call, repeated inside the function:
//
//	const repeats = 1000
//	repeatedCGO := func() {
//		for range repeats {
//			dummyCGO(unsafe.Pointer(plugin.api))
//		}
//	}
//	microbench.New(microbench.NamedFunction{Name: "CGOCall", Func: repeatedCGO}).
//		WithInnerRepeats(repeats).
//		Done()
package microbench

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Options of a benchmark of a list of functions. Create it with New, configure it with
// the With* methods and run it with Run or Done.
type Options struct {
	fns           []NamedFunction
	session       *Session
	logger        *slog.Logger
	output        io.Writer
	prettyPrintFn func(ms float64) string
	quantiles     []int
	config        Config
	columnSize    int
}

// NamedFunction holds a function to be benchmarked and its name.
//
// If CheckedFunc is set, it is used instead of Func, and batches in which it returns false
// are discarded.
type NamedFunction struct {
	Name        string
	Func        func()
	CheckedFunc func() bool
}

// Checked returns a NamedFunction whose failures (fn returning false) are discarded.
func Checked(name string, fn func() bool) NamedFunction {
	return NamedFunction{Name: name, CheckedFunc: fn}
}

func (fn NamedFunction) op() func() bool {
	if fn.CheckedFunc != nil {
		return fn.CheckedFunc
	}
	return unchecked(fn.Func)
}

// DefaultQuantiles to report, in percent. It can be changed for a particular benchmark using
// Options.WithQuantiles.
var DefaultQuantiles = []int{5, 99}

// DefaultDuration of the measurement of each function.
const DefaultDuration = 1 * time.Second

// New sets up a benchmark for the list of named functions fns.
// You can further configure the returned Options, and call Done() when finished to execute the benchmark.
func New(fns ...NamedFunction) *Options {
	return &Options{
		fns:           fns,
		output:        os.Stdout,
		prettyPrintFn: PrettyPrintMs,
		quantiles:     DefaultQuantiles,
		config: Config{
			MaxTime:             DefaultDuration,
			CallsPerInvocation:  1,
			BatchTimeMultiplier: DefaultBatchTimeMultiplier,
			MinBatchSize:        DefaultMinBatchSize,
			MinEndChecks:        DefaultMinEndChecks,
			Tolerance:           DefaultTolerance,
		},
		columnSize: 10,
	}
}

// WithPrettyPrintFn sets a custom pretty-print function for formatting times given in milliseconds,
// and returns the updated Options instance. Default is PrettyPrintMs.
func (o *Options) WithPrettyPrintFn(fn func(ms float64) string) *Options {
	o.prettyPrintFn = fn
	return o
}

// WithQuantiles sets the quantiles (in percent) to report, besides the median, and returns the updated
// Options instance. Default is given by DefaultQuantiles ({5, 99}).
func (o *Options) WithQuantiles(quantiles ...int) *Options {
	o.quantiles = slices.Clone(quantiles)
	return o
}

// WithDuration sets the time budget of the measurement of each function, and returns the updated Options instance.
// Default is DefaultDuration.
func (o *Options) WithDuration(duration time.Duration) *Options {
	o.config.MaxTime = duration
	return o
}

// WithWarmUp sets how long each function runs, at the smallest batch size, before the batch size is tuned
// and the statistics are reset. Default is 1/20th of the duration plus 1ms.
func (o *Options) WithWarmUp(warmUp time.Duration) *Options {
	o.config.WarmUp = warmUp
	return o
}

// WithInnerRepeats sets the expected number of inner repeats of the functions given for the benchmark and returns the updated Options instance.
//
// This only informs the inner repetitions inside the functions given, this library won't repeat any calls.
// If passing a value > 1 here, you must repeat the piece of code you want to benchmark inside the functions given to New.
//
// Notice that reported measures are divided by this number. That means changing this number shouldn't
// affect the reported mean. Default is 1.
func (o *Options) WithInnerRepeats(innerRepeats int) *Options {
	o.config.CallsPerInvocation = int64(innerRepeats)
	return o
}

// WithBatchTimeMultiplier sets the target duration of each timed batch, as a multiple of the clock accuracy.
// Larger values lower the relative error of each sample, but leave fewer samples. Default is 5.
func (o *Options) WithBatchTimeMultiplier(multiplier int) *Options {
	o.config.BatchTimeMultiplier = int64(multiplier)
	return o
}

// WithMinBatchSize sets the smallest number of calls per timed batch. Default is 1.
func (o *Options) WithMinBatchSize(minBatchSize int) *Options {
	o.config.MinBatchSize = int64(minBatchSize)
	return o
}

// WithMinEndChecks sets the minimum number of timed batches after the batch size is tuned. Default is 5.
func (o *Options) WithMinEndChecks(minEndChecks int) *Options {
	o.config.MinEndChecks = int64(minEndChecks)
	return o
}

// WithTolerance sets the tolerance in the approximate quantiles calculations. The smaller the tolerance the larger
// the amount of memory used in approximating the quantiles.
//
// Default is 0.001 which is good enough for most cases.
func (o *Options) WithTolerance(tolerance float64) *Options {
	o.config.Tolerance = tolerance
	return o
}

// WithColumnSize sets the size (in number of runes) for each column reported by benchmark.
// Handy if setting WithPrettyPrintFn to something that uses more or less space.
//
// Default is 10.
// Notice that any value smaller than 9 may mis-align the header row.
func (o *Options) WithColumnSize(columnSize int) *Options {
	o.columnSize = columnSize
	return o
}

// WithSession sets the calibrated Session used to measure. Default is the process-wide Default().
func (o *Options) WithSession(session *Session) *Options {
	o.session = session
	return o
}

// WithLogger sets a logger for debug information about calibration and batch tuning.
func (o *Options) WithLogger(logger *slog.Logger) *Options {
	o.logger = logger
	return o
}

// WithOutput sets where Done prints the table. Default is os.Stdout.
func (o *Options) WithOutput(w io.Writer) *Options {
	o.output = w
	return o
}

func (o *Options) measuringConfig() Config {
	cfg := o.config
	cfg.Quantiles = make([]float64, len(o.quantiles))
	for ii, pct := range o.quantiles {
		cfg.Quantiles[ii] = float64(pct) / 100.0
	}
	return cfg
}

func (o *Options) measuringSession() *Session {
	session := o.session
	if session == nil {
		session = Default()
	}
	if o.logger != nil {
		session = session.WithLogger(o.logger)
		o.logger.Debug("microbench: clock calibrated", slog.String("clock_stats", session.ClockStats().String()))
	}
	return session
}

// Run measures each function in order and returns their results.
func (o *Options) Run() []Result {
	session := o.measuringSession()
	cfg := o.measuringConfig()
	results := make([]Result, len(o.fns))
	for ii, namedFn := range o.fns {
		results[ii] = session.Measure(namedFn.op(), cfg)
	}
	return results
}

// Done measures each function in order and prints a table with the results.
func (o *Options) Done() {
	w := o.output

	// First column
	header := "Benchmarks:"
	maxLen := len(header)
	runeCount := make([]int, len(o.fns))
	for ii, namedFn := range o.fns {
		runeCount[ii] = utf8.RuneCountInString(namedFn.Name)
		maxLen = max(maxLen, runeCount[ii])
	}

	// Header
	extraSpaces := maxLen - len(header)
	if extraSpaces > 0 {
		header = header + strings.Repeat(" ", extraSpaces)
	}
	fmt.Fprintf(w, "%s\t%*s\t%*s\t%*s\t%*s\t%*s", header, o.columnSize, "Mean", o.columnSize, "±Dev",
		o.columnSize, "Min", o.columnSize, "Max", o.columnSize, "Median")
	for _, q := range o.quantiles {
		fmt.Fprintf(w, "\t%*s", o.columnSize, fmt.Sprintf("%d%%-tile", q))
	}
	countStr := "Runs"
	if o.config.CallsPerInvocation > 1 {
		countStr = fmt.Sprintf("Runs(x%d)", o.config.CallsPerInvocation)
	}
	fmt.Fprintf(w, "\t%*s\t%*s\n", o.columnSize, countStr, o.columnSize, "Batch")

	session := o.measuringSession()
	cfg := o.measuringConfig()
	for ii, namedFn := range o.fns {
		r := session.Measure(namedFn.op(), cfg)

		// Pretty-print.
		name := namedFn.Name
		extraSpaces := maxLen - runeCount[ii]
		if extraSpaces > 0 {
			name = name + strings.Repeat(" ", extraSpaces)
		}
		fmt.Fprintf(w, "%s\t%*s\t%*s\t%*s\t%*s\t%*s", name,
			o.columnSize, o.prettyPrintFn(r.MeanMs), o.columnSize, o.prettyPrintFn(r.DeviationMs),
			o.columnSize, o.prettyPrintFn(r.MinMs), o.columnSize, o.prettyPrintFn(r.MaxMs),
			o.columnSize, o.prettyPrintFn(r.MedianMs))
		for _, q := range r.QuantilesMs {
			fmt.Fprintf(w, "\t%*s", o.columnSize, o.prettyPrintFn(q))
		}
		// Missing quantiles, if no batch was accepted.
		for range len(o.quantiles) - len(r.QuantilesMs) {
			fmt.Fprintf(w, "\t%*s", o.columnSize, "-")
		}
		iters := r.Iterations
		if cfg.CallsPerInvocation > 1 {
			iters /= cfg.CallsPerInvocation
		}
		fmt.Fprintf(w, "\t%*d\t%*d\n", o.columnSize, iters, o.columnSize, r.BatchSize)
	}
}
