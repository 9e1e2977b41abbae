package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	microbench "github.com/janpfeifer/go-microbench"
	"github.com/janpfeifer/go-microbench/internal/workloads"
)

// runConfig holds the settings of the run command, after merging flags, environment and config file.
type runConfig struct {
	Duration        time.Duration
	WarmUp          time.Duration
	InnerRepeats    int
	BatchMultiplier int
	MinBatch        int
	MinChecks       int
	Quantiles       []int
}

func runFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.DurationP("duration", "d", microbench.DefaultDuration, "time budget for each workload")
	fs.Duration("warmup", 0, "time before the batch size is tuned (default duration/20 + 1ms)")
	fs.Int("inner-repeats", 1, "calls of the measured code inside each invocation")
	fs.Int("batch-multiplier", microbench.DefaultBatchTimeMultiplier, "target batch duration, in multiples of the clock accuracy")
	fs.Int("min-batch", microbench.DefaultMinBatchSize, "minimum number of invocations per timed batch")
	fs.Int("min-checks", microbench.DefaultMinEndChecks, "minimum number of timed batches after tuning")
	fs.IntSlice("quantiles", microbench.DefaultQuantiles, "percentiles to report besides the median")
	return fs
}

// runKeys maps flag names to viper keys.
var runKeys = map[string]string{
	"duration":         "run.duration",
	"warmup":           "run.warmup",
	"inner-repeats":    "run.inner_repeats",
	"batch-multiplier": "run.batch_multiplier",
	"min-batch":        "run.min_batch",
	"min-checks":       "run.min_checks",
	"quantiles":        "run.quantiles",
}

func loadRunConfig(v *viper.Viper) (runConfig, error) {
	cfg := runConfig{
		Duration:        v.GetDuration("run.duration"),
		WarmUp:          v.GetDuration("run.warmup"),
		InnerRepeats:    v.GetInt("run.inner_repeats"),
		BatchMultiplier: v.GetInt("run.batch_multiplier"),
		MinBatch:        v.GetInt("run.min_batch"),
		MinChecks:       v.GetInt("run.min_checks"),
		Quantiles:       v.GetIntSlice("run.quantiles"),
	}
	switch {
	case cfg.Duration <= 0:
		return cfg, errors.Errorf("--duration must be positive, got %s", cfg.Duration)
	case cfg.WarmUp < 0:
		return cfg, errors.Errorf("--warmup can't be negative, got %s", cfg.WarmUp)
	case cfg.InnerRepeats < 1:
		return cfg, errors.Errorf("--inner-repeats must be at least 1, got %d", cfg.InnerRepeats)
	case cfg.BatchMultiplier < 1:
		return cfg, errors.Errorf("--batch-multiplier must be at least 1, got %d", cfg.BatchMultiplier)
	case cfg.MinBatch < 1:
		return cfg, errors.Errorf("--min-batch must be at least 1, got %d", cfg.MinBatch)
	case cfg.MinChecks < 1:
		return cfg, errors.Errorf("--min-checks must be at least 1, got %d", cfg.MinChecks)
	}
	for _, q := range cfg.Quantiles {
		if q < 0 || q > 100 {
			return cfg, errors.Errorf("--quantiles must be percentiles in [0, 100], got %d", q)
		}
	}
	return cfg, nil
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [workload...]",
		Short: "Measures the given workloads, or all of them, and prints a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			clock, err := newClock(v)
			if err != nil {
				return err
			}
			fns, err := workloads.NamedFunctions(args...)
			if err != nil {
				return err
			}

			microbench.New(fns...).
				WithSession(microbench.NewSession(clock)).
				WithLogger(logger).
				WithOutput(cmd.OutOrStdout()).
				WithDuration(cfg.Duration).
				WithWarmUp(cfg.WarmUp).
				WithInnerRepeats(cfg.InnerRepeats).
				WithBatchTimeMultiplier(cfg.BatchMultiplier).
				WithMinBatchSize(cfg.MinBatch).
				WithMinEndChecks(cfg.MinChecks).
				WithQuantiles(cfg.Quantiles...).
				Done()
			return nil
		},
	}
	cmd.Flags().AddFlagSet(runFlags())
	for flag, key := range runKeys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
	return cmd
}
