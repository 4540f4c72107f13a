// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coilworks/winderctl/internal/logger"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	cfgFile string
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "winderctl",
	Short: "CNC pickup winder controller",
	Long: `Winderctl - host-side controller for the Coilworks pickup winding machine.

Provides commands for driving winding jobs, monitoring firmware telemetry,
testing wire-guide sweeps, and calculating required turns from a target DC
resistance.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the WINDER_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version:           "1.2.0",
	PersistentPreRunE: initConfig,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, overrides config)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default winderctl.yaml in . or ~/.config/winderctl)")
}

// initConfig loads the config file, applies defaults and sanity limits, and
// brings up logging before any subcommand runs.
func initConfig(cmd *cobra.Command, args []string) error {
	viper.SetDefault("baud_rate", 115200)
	viper.SetDefault("read_timeout_ms", 1000)
	viper.SetDefault("max_speed", 5000)
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("log.file", "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("winderctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/winderctl")
	}

	viper.SetEnvPrefix("WINDER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config is fine, a broken or explicitly
		// named one is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if maxSpeed := viper.GetInt("max_speed"); maxSpeed < 1000 || maxSpeed > 50000 {
		return fmt.Errorf("max_speed %d out of range [1000, 50000]", maxSpeed)
	}
	if baudRate == 0 {
		baudRate = viper.GetInt("baud_rate")
	}

	log = logger.Get(viper.GetString("log.level"), viper.GetString("log.file"))
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
