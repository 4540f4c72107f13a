// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coilworks/winderctl/pkg/session"
	"github.com/coilworks/winderctl/pkg/winder"
)

var (
	calcPresetPath string
	calcTimeoutSec int
)

var calcCmd = &cobra.Command{
	Use:   "calc <resistance>",
	Short: "Calculate required turns for a target DC resistance",
	Long: `Ask the firmware how many turns reach the target DC resistance with the
preset's bobbin geometry and wire diameter.

The resistance accepts the usual formats: 6.5k, 5000, 5000r. The bobbin and
wire settings are sent first so the firmware computes against the preset,
not whatever it last had.`,
	Example: `  winderctl calc 6.5k --port /dev/ttyUSB0
  winderctl calc 5800r --preset strat-neck.yaml --port /dev/ttyUSB0`,
	Args: cobra.ExactArgs(1),
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().StringVar(&calcPresetPath, "preset", "", "Preset file with bobbin geometry")
	calcCmd.Flags().IntVar(&calcTimeoutSec, "timeout", 5, "Seconds to wait for the firmware's answer")
	rootCmd.AddCommand(calcCmd)
}

func runCalc(cmd *cobra.Command, args []string) error {
	preset := winder.DefaultPreset()
	if calcPresetPath != "" {
		var err error
		preset, err = winder.LoadPreset(calcPresetPath)
		if err != nil {
			return err
		}
	}

	calcCmdLine, err := winder.Calculate(args[0])
	if err != nil {
		return err
	}
	bobbinCmd, err := winder.SetBobbin(preset.Geometry())
	if err != nil {
		return err
	}
	wireCmd, err := winder.SetWireDiameter(preset.Calculator.WireDiameterMM)
	if err != nil {
		return err
	}

	ctrl := session.NewController(log)

	answers := make(chan winder.Event, 8)
	ctrl.Notify(func(ev winder.Event) {
		switch ev.(type) {
		case winder.RequiredTurns, winder.Resistance:
			select {
			case answers <- ev:
			default:
			}
		}
	})

	if _, err := connectSession(ctrl); err != nil {
		return err
	}
	defer ctrl.Disconnect()

	for _, c := range []string{bobbinCmd, wireCmd, calcCmdLine} {
		if err := ctrl.Send(c); err != nil {
			return err
		}
	}

	deadline := time.After(time.Duration(calcTimeoutSec) * time.Second)
	var (
		turns     int
		haveTurns bool
		ohms      float64
		haveOhms  bool
	)
	for !(haveTurns && haveOhms) {
		select {
		case ev := <-answers:
			switch tev := ev.(type) {
			case winder.RequiredTurns:
				turns, haveTurns = tev.Turns, true
			case winder.Resistance:
				ohms, haveOhms = tev.Ohms, true
			}
		case <-deadline:
			if haveTurns {
				// Older firmware only reports the turn count.
				fmt.Printf("Required turns: %d\n", turns)
				return nil
			}
			return fmt.Errorf("no answer from firmware within %ds", calcTimeoutSec)
		}
	}

	fmt.Printf("Required turns:     %d\n", turns)
	fmt.Printf("Est. DC resistance: %.2f ohms\n", ohms)
	return nil
}
