// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coilworks/winderctl/pkg/session"
	"github.com/coilworks/winderctl/pkg/winder"
)

var (
	controlPresetPath string
	controlSweepMode  string
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for running winding jobs",
	Long: `Drive the winder via an interactive terminal UI.

Features:
  - Live turn count and servo position with a progress bar
  - Start/stop/pause/resume control
  - Editable target turns and speed
  - Firmware, GUI-tracked and pattern sweep modes
  - Event logging
  - Automatic reconnection on connection loss

Setup values are taken from the preset file (--preset) and can be adjusted
in the UI before starting.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	controlCmd.Flags().StringVar(&controlPresetPath, "preset", "", "Preset file with winding setup")
	controlCmd.Flags().StringVar(&controlSweepMode, "sweep-mode", "", "Override sweep mode (FIRMWARE, GUI or PATTERN)")
	rootCmd.AddCommand(controlCmd)
}

// reconnectManager re-establishes the session after a connection drop. One
// attempt loop runs at a time; the TUI is informed of both the loss and the
// recovery.
type reconnectManager struct {
	ctrl *session.Controller
	p    *tea.Program

	mu   sync.Mutex
	done bool
}

func (rm *reconnectManager) stop() {
	rm.mu.Lock()
	rm.done = true
	rm.mu.Unlock()
}

func (rm *reconnectManager) stopped() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.done
}

// run retries until a connection sticks or the TUI shuts down.
func (rm *reconnectManager) run() {
	for !rm.stopped() {
		time.Sleep(2 * time.Second)

		if rm.stopped() {
			return
		}
		connInfo, err := connectSession(rm.ctrl)
		if err != nil {
			continue
		}
		if rm.stopped() {
			rm.ctrl.Disconnect()
			return
		}

		rm.p.Send(reconnectedMsg{connInfo: connInfo})
		return
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	preset := winder.DefaultPreset()
	if controlPresetPath != "" {
		var err error
		preset, err = winder.LoadPreset(controlPresetPath)
		if err != nil {
			return err
		}
	}
	if controlSweepMode != "" {
		preset.Control.SweepMode = controlSweepMode
	}
	if _, err := winder.ParseSweepMode(preset.Control.SweepMode); err != nil {
		return err
	}
	if _, err := winder.ParseDirection(preset.Control.Direction); err != nil {
		return err
	}

	ctrl := session.NewController(log)
	connInfo, err := connectSession(ctrl)
	if err != nil {
		return err
	}

	m := initialControlModel(ctrl, preset, connInfo, viper.GetInt("max_speed"))
	p := tea.NewProgram(m, tea.WithAltScreen())
	rm := &reconnectManager{ctrl: ctrl, p: p}

	ctrl.Notify(func(ev winder.Event) {
		p.Send(telemetryMsg{event: ev})
	})
	ctrl.NotifyDisconnect(func(err error) {
		p.Send(connectionLostMsg{err: err})
		go rm.run()
	})

	_, runErr := p.Run()

	rm.stop()
	ctrl.Disconnect()
	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}
