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

var monitorParsed bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display firmware telemetry as it arrives",
	Long: `Continuously read and display winder telemetry lines.

By default every raw line is printed with a timestamp. With --parsed, each
line is also classified (turn updates, status changes, calculator results)
and a parse statistics summary is printed on exit.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorParsed, "parsed", false, "Classify each line and show parse statistics on exit")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	fmt.Printf("Winderctl - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tr := session.NewTransport(log)
	if err := tr.Open(conn); err != nil {
		return err
	}
	defer tr.Close()

	stats := winder.NewStats()
	events := tr.Events()

	for {
		select {
		case <-ctx.Done():
			if monitorParsed {
				stats.CalculateRates()
				fmt.Printf("\n%s\n", stats)
			}
			return nil

		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("connection closed")
			}
			switch tev := ev.(type) {
			case session.LineReceived:
				ts := time.Now().Format("15:04:05.000")
				if monitorParsed {
					parsed := winder.ParseLine(tev.Line)
					stats.Update(parsed)
					fmt.Printf("[%s] %-60q %s\n", ts, tev.Line, describeEvent(parsed))
				} else {
					fmt.Printf("[%s] %s\n", ts, tev.Line)
				}
			case session.ConnectionLost:
				return fmt.Errorf("connection lost: %w", tev.Err)
			}
		}
	}
}

func describeEvent(ev winder.Event) string {
	switch tev := ev.(type) {
	case winder.TurnUpdate:
		return fmt.Sprintf("turn=%d servo=%.2f", tev.Turn, tev.ServoPos)
	case winder.TurnCount:
		return fmt.Sprintf("turn=%d", tev.Turn)
	case winder.Resistance:
		return fmt.Sprintf("resistance=%.2f ohms", tev.Ohms)
	case winder.RequiredTurns:
		return fmt.Sprintf("required_turns=%d", tev.Turns)
	case winder.WindingStopped:
		return "stopped"
	case winder.WindingPaused:
		return "paused"
	case winder.WindingResumed:
		return "resumed"
	default:
		return "unrecognized"
	}
}
