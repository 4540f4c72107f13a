// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks
//
// Winderctl - CNC pickup winder controller
//
// Host-side CLI for driving, monitoring and calibrating the Coilworks
// pickup winding machine over its serial command protocol.

package main

import (
	"os"

	"github.com/coilworks/winderctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
