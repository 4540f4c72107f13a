// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/coilworks/winderctl/pkg/session"
	"github.com/coilworks/winderctl/pkg/winder"
)

var resetConfirm bool

var servoCmd = &cobra.Command{
	Use:   "servo",
	Short: "Wire-guide servo maintenance",
}

var servoPosCmd = &cobra.Command{
	Use:   "pos <angle>",
	Short: "Move the wire guide to an absolute angle (0-180)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		angle, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid angle %q", args[0])
		}
		line, err := winder.ServoPosition(angle)
		if err != nil {
			return err
		}
		return sendOneShot(line)
	},
}

var servoCalibrateCmd = &cobra.Command{
	Use:   "calibrate <min> <max>",
	Short: "Store the servo travel limits in firmware EEPROM",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minAngle, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid min angle %q", args[0])
		}
		maxAngle, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid max angle %q", args[1])
		}
		line, err := winder.ServoCalibrate(minAngle, maxAngle)
		if err != nil {
			return err
		}
		return sendOneShot(line)
	},
}

var servoEnableCmd = &cobra.Command{
	Use:       "power <on|off>",
	Short:     "Enable or disable servo holding torque",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(winder.ServoEnable(args[0] == "on"))
	},
}

var stepperCmd = &cobra.Command{
	Use:   "stepper",
	Short: "Spindle stepper maintenance",
}

var stepperEnableCmd = &cobra.Command{
	Use:       "power <on|off>",
	Short:     "Enable or disable the stepper driver",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(winder.StepperEnable(args[0] == "on"))
	},
}

var stepperMoveCmd = &cobra.Command{
	Use:   "move <steps>",
	Short: "Jog the spindle by a relative step count (negative reverses)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		line, err := winder.StepperMove(steps)
		if err != nil {
			return err
		}
		return sendOneShot(line)
	},
}

var scatterCmd = &cobra.Command{
	Use:   "scatter <percent>",
	Short: "Set the scatter percentage for the current sweep",
	Long: `Update the firmware's scatter setting without restarting the job.
Scatter shrinks the sweep range symmetrically to spread turns unevenly,
which lowers the coil's distributed capacitance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid scatter percentage %q", args[0])
		}
		line, err := winder.SetScatter(percent)
		if err != nil {
			return err
		}
		return sendOneShot(line)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the firmware's stored settings to defaults",
	Long: `Reset the firmware's EEPROM-backed settings (servo limits, winding
defaults) to factory values. The device restarts afterwards.

Destructive; requires --confirm.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirm {
			return fmt.Errorf("refusing to reset without --confirm")
		}
		return sendOneShot(winder.SystemReset())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query and print the firmware's current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(winder.SystemStatus())
	},
}

func init() {
	servoCmd.AddCommand(servoPosCmd, servoCalibrateCmd, servoEnableCmd)
	stepperCmd.AddCommand(stepperEnableCmd, stepperMoveCmd)
	resetCmd.Flags().BoolVar(&resetConfirm, "confirm", false, "Really reset the firmware settings")
	rootCmd.AddCommand(servoCmd, stepperCmd, scatterCmd, resetCmd, statusCmd)
}

// sendOneShot connects, sends one command, echoes the firmware's replies for
// a short window, and disconnects.
func sendOneShot(line string) error {
	ctrl := session.NewController(log)

	replies := make(chan string, 64)
	ctrl.Notify(func(ev winder.Event) {
		select {
		case replies <- formatReply(ev):
		default:
		}
	})

	if _, err := connectSession(ctrl); err != nil {
		return err
	}
	defer ctrl.Disconnect()

	// Connecting already queries SYS STATUS; discard that dump first so a
	// one-shot command's own answer is all we echo. The status command
	// just sends the query a second time and keeps the answer.
	drainQuiet(replies)

	if err := ctrl.Send(line); err != nil {
		return err
	}

	// The firmware answers one-shot commands with free-form text; echo
	// whatever arrives before the quiet period ends.
	quiet := time.After(quietWindow)
	for {
		select {
		case reply := <-replies:
			if reply != "" {
				fmt.Println(reply)
			}
			quiet = time.After(quietWindow)
		case <-quiet:
			return nil
		}
	}
}

const quietWindow = 700 * time.Millisecond

// formatReply renders a firmware reply for echoing. Lines the telemetry
// parser recognizes still belong in a one-shot's answer (a status dump is
// mostly recognized lines), so they are summarized rather than dropped.
func formatReply(ev winder.Event) string {
	if u, ok := ev.(winder.Unrecognized); ok {
		return u.Raw
	}
	return describeEvent(ev)
}

func drainQuiet(replies <-chan string) {
	quiet := time.After(quietWindow)
	for {
		select {
		case <-replies:
			quiet = time.After(quietWindow)
		case <-quiet:
			return
		}
	}
}
