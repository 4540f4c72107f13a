// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/coilworks/winderctl/pkg/session"
	"github.com/coilworks/winderctl/pkg/winder"
)

var (
	sweepPresetPath string
	sweepIntervalMS int
	sweepDryRun     bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one test pass of the wire-guide sweep",
	Long: `Drive the wire guide through one full layer pair (up and back down)
using the sweep settings from the preset, without winding any wire.

Useful for verifying the servo travel and scatter settings against the
physical bobbin before committing to a job. With --dry-run the computed
angles are printed instead of sent, so no connection is needed.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepPresetPath, "preset", "", "Preset file with sweep settings")
	sweepCmd.Flags().IntVar(&sweepIntervalMS, "interval", 50, "Milliseconds between servo steps")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Print the angles without sending them")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	preset := winder.DefaultPreset()
	if sweepPresetPath != "" {
		var err error
		preset, err = winder.LoadPreset(sweepPresetPath)
		if err != nil {
			return err
		}
	}
	cfg := preset.Sweep()
	if err := cfg.Validate(); err != nil {
		return err
	}

	effMin, effMax, pitch := cfg.EffectiveRange()
	fmt.Printf("Sweep: %.2f° - %.2f° (pitch %.3f°, %d turns/layer, %.1f%% scatter)\n",
		effMin, effMax, pitch, cfg.TurnsPerLayer, cfg.ScatterPercent)

	if sweepDryRun {
		for i, angle := range cfg.PatternSteps() {
			fmt.Printf("  step %3d: %7.3f°\n", i, angle)
		}
		return nil
	}

	ctrl := session.NewController(log)
	connInfo, err := connectSession(ctrl)
	if err != nil {
		return err
	}
	defer ctrl.Disconnect()

	fmt.Printf("Connection: %s\n", connInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := &winder.Sweeper{
		Config:   cfg,
		Interval: time.Duration(sweepIntervalMS) * time.Millisecond,
		Step: func(step, total int, angle float64) error {
			line, err := winder.ServoPosition(angle)
			if err != nil {
				return err
			}
			if err := ctrl.Send(line); err != nil {
				return err
			}
			fmt.Printf("\r  step %d/%d: %.3f°", step+1, total, angle)
			return nil
		},
	}

	err = s.Run(ctx)
	fmt.Println()
	if err == context.Canceled {
		fmt.Println("Sweep interrupted")
		return nil
	}
	return err
}
