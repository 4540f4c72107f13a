// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"fmt"

	"github.com/spf13/viper"
)

// Preset is the on-disk snapshot of a winding setup: everything the operator
// dials in before hitting start. It is a serialization format only; runtime
// state lives in the session controller.
type Preset struct {
	Control    ControlPreset    `mapstructure:"control"`
	Calculator CalculatorPreset `mapstructure:"calculator"`
	GUISweep   SweepPreset      `mapstructure:"gui_sweep"`
}

// ControlPreset holds the control-tab values.
type ControlPreset struct {
	TargetTurns int    `mapstructure:"target_turns"`
	Speed       int    `mapstructure:"speed"`
	Direction   string `mapstructure:"direction"`
	SweepMode   string `mapstructure:"sweep_mode"`
}

// CalculatorPreset holds the calculator-tab values.
type CalculatorPreset struct {
	Resistance     string  `mapstructure:"resistance"`
	BobbinLengthMM float64 `mapstructure:"bobbin_length_mm"`
	BobbinWidthMM  float64 `mapstructure:"bobbin_width_mm"`
	BobbinHeightMM float64 `mapstructure:"bobbin_height_mm"`
	WireDiameterMM float64 `mapstructure:"wire_diameter_mm"`
}

// SweepPreset holds the sweep-tab values.
type SweepPreset struct {
	MinAngle       float64 `mapstructure:"min_angle"`
	MaxAngle       float64 `mapstructure:"max_angle"`
	TurnsPerLayer  int     `mapstructure:"turns_per_layer"`
	ScatterPercent float64 `mapstructure:"scatter_percent"`
}

// DefaultPreset returns the values the application ships with: a typical
// single-coil pickup on a 60x4x9 mm bobbin with 0.063 mm wire.
func DefaultPreset() Preset {
	return Preset{
		Control: ControlPreset{
			TargetTurns: 8000,
			Speed:       4000,
			Direction:   Forward.String(),
			SweepMode:   SweepFirmware.String(),
		},
		Calculator: CalculatorPreset{
			Resistance:     "6.5k",
			BobbinLengthMM: 60.0,
			BobbinWidthMM:  4.0,
			BobbinHeightMM: 9.0,
			WireDiameterMM: 0.063,
		},
		GUISweep: SweepPreset{
			MinAngle:       70,
			MaxAngle:       100,
			TurnsPerLayer:  45,
			ScatterPercent: 0,
		},
	}
}

// Geometry returns the bobbin geometry the preset describes.
func (p Preset) Geometry() BobbinGeometry {
	return BobbinGeometry{
		LengthMM:       p.Calculator.BobbinLengthMM,
		WidthMM:        p.Calculator.BobbinWidthMM,
		HeightMM:       p.Calculator.BobbinHeightMM,
		WireDiameterMM: p.Calculator.WireDiameterMM,
	}
}

// Sweep returns the sweep configuration the preset describes.
func (p Preset) Sweep() SweepConfig {
	return SweepConfig{
		MinAngle:       p.GUISweep.MinAngle,
		MaxAngle:       p.GUISweep.MaxAngle,
		TurnsPerLayer:  p.GUISweep.TurnsPerLayer,
		ScatterPercent: p.GUISweep.ScatterPercent,
	}
}

// ParseDirection decodes the preset's direction string.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "FWD", "":
		return Forward, nil
	case "REV":
		return Reverse, nil
	}
	return Forward, invalidf("direction", s, "must be FWD or REV")
}

// ParseSweepMode decodes the preset's sweep mode string.
func ParseSweepMode(s string) (SweepMode, error) {
	switch s {
	case "FIRMWARE", "":
		return SweepFirmware, nil
	case "GUI":
		return SweepLive, nil
	case "PATTERN":
		return SweepPattern, nil
	}
	return SweepFirmware, invalidf("sweep_mode", s, "must be FIRMWARE, GUI or PATTERN")
}

// LoadPreset reads a preset file. Missing keys fall back to the defaults so
// presets written by older versions keep loading.
func LoadPreset(path string) (Preset, error) {
	p := DefaultPreset()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return p, fmt.Errorf("read preset %s: %w", path, err)
	}
	if err := v.Unmarshal(&p); err != nil {
		return p, fmt.Errorf("decode preset %s: %w", path, err)
	}
	return p, nil
}

// Save writes the preset to a file. The written document round-trips through
// LoadPreset without loss.
func (p Preset) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("control.target_turns", p.Control.TargetTurns)
	v.Set("control.speed", p.Control.Speed)
	v.Set("control.direction", p.Control.Direction)
	v.Set("control.sweep_mode", p.Control.SweepMode)

	v.Set("calculator.resistance", p.Calculator.Resistance)
	v.Set("calculator.bobbin_length_mm", p.Calculator.BobbinLengthMM)
	v.Set("calculator.bobbin_width_mm", p.Calculator.BobbinWidthMM)
	v.Set("calculator.bobbin_height_mm", p.Calculator.BobbinHeightMM)
	v.Set("calculator.wire_diameter_mm", p.Calculator.WireDiameterMM)

	v.Set("gui_sweep.min_angle", p.GUISweep.MinAngle)
	v.Set("gui_sweep.max_angle", p.GUISweep.MaxAngle)
	v.Set("gui_sweep.turns_per_layer", p.GUISweep.TurnsPerLayer)
	v.Set("gui_sweep.scatter_percent", p.GUISweep.ScatterPercent)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write preset %s: %w", path, err)
	}
	return nil
}
