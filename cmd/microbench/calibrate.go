package main

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	microbench "github.com/janpfeifer/go-microbench"
)

func newCalibrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measures the overhead of reading the clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			clock, err := newClock(v)
			if err != nil {
				return err
			}
			samples := v.GetInt("calibrate.samples")
			if samples <= 0 {
				return errors.Errorf("--samples must be positive, got %d", samples)
			}
			stats := microbench.Calibrate(clock, samples)
			logger.Debug("calibrated", slog.String("clock", v.GetString("clock")), slog.Int("samples", samples))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", v.GetString("clock"), stats)
			return nil
		},
	}
	cmd.Flags().Int("samples", microbench.DefaultCalibrationSamples, "number of back-to-back clock read pairs")
	_ = v.BindPFlag("calibrate.samples", cmd.Flags().Lookup("samples"))
	return cmd
}
