package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	microbench "github.com/janpfeifer/go-microbench"
)

const envPrefix = "MICROBENCH"

func newRootCmd() *cobra.Command {
	return newRootCmdWithViper(viper.New())
}

// newRootCmdWithViper builds the command tree, with its settings merged into v.
func newRootCmdWithViper(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "microbench",
		Short: "Measures the per-call time of tiny operations",
		Long: `microbench calibrates the overhead of the clock, then measures operations in
batches sized so that the clock overhead is negligible, and reports the per-call
mean, deviation, min and max, corrected for the batching.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file with defaults for any flag")
	flags.String("clock", microbench.DefaultClockName,
		"clock used for measuring, one of "+strings.Join(microbench.ClockNames(), ", "))
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	_ = v.BindPFlag("clock", flags.Lookup("clock"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(newCalibrateCmd(v), newListCmd(), newRunCmd(v))
	return root
}

// initConfig layers, from lowest to highest priority: flag defaults, the config file,
// MICROBENCH_* environment variables and explicitly set flags.
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading config file %q", cfgFile)
	}
	return nil
}

func newLogger(v *viper.Viper, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, errors.Wrap(err, "invalid --log-level")
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func newClock(v *viper.Viper) (microbench.Clock, error) {
	clock, err := microbench.ClockByName(v.GetString("clock"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid --clock")
	}
	return clock, nil
}
