// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"errors"
	"strings"
	"testing"
)

func TestStartWinding(t *testing.T) {
	if got := StartWinding(true); got != "WIND START -V\n" {
		t.Errorf("StartWinding(true) = %q, want %q", got, "WIND START -V\n")
	}
	if got := StartWinding(false); got != "WIND START\n" {
		t.Errorf("StartWinding(false) = %q, want %q", got, "WIND START\n")
	}
}

func TestSimpleCommands(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"stop", StopWinding(), "WIND STOP\n"},
		{"pause", PauseWinding(), "WIND PAUSE\n"},
		{"resume", ResumeWinding(), "WIND RESUME\n"},
		{"servo enable", ServoEnable(true), "SERVO ENABLE\n"},
		{"servo disable", ServoEnable(false), "SERVO DISABLE\n"},
		{"stepper enable", StepperEnable(true), "STEPPER ENABLE\n"},
		{"stepper disable", StepperEnable(false), "STEPPER DISABLE\n"},
		{"status", SystemStatus(), "SYS STATUS\n"},
		{"reset", SystemReset(), "SYS RESET\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSetSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speed    int
		maxSpeed int
		want     string
		wantErr  bool
	}{
		{"typical", 4000, 5000, "WIND SPEED 4000\n", false},
		{"at max", 5000, 5000, "WIND SPEED 5000\n", false},
		{"no max configured", 9000, 0, "WIND SPEED 9000\n", false},
		{"zero", 0, 5000, "", true},
		{"negative", -100, 5000, "", true},
		{"above max", 5001, 5000, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SetSpeed(tt.speed, tt.maxSpeed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetSpeed(%d, %d) error = %v, wantErr %v", tt.speed, tt.maxSpeed, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SetSpeed(%d, %d) = %q, want %q", tt.speed, tt.maxSpeed, got, tt.want)
			}
		})
	}
}

func TestSetTurnCount(t *testing.T) {
	got, err := SetTurnCount(8000)
	if err != nil {
		t.Fatalf("SetTurnCount(8000) error = %v", err)
	}
	if got != "WIND COUNT 8000\n" {
		t.Errorf("SetTurnCount(8000) = %q, want %q", got, "WIND COUNT 8000\n")
	}

	if _, err := SetTurnCount(0); err == nil {
		t.Error("SetTurnCount(0) expected error, got nil")
	}

	var verr *ValidationError
	_, err = SetTurnCount(-1)
	if !errors.As(err, &verr) {
		t.Errorf("SetTurnCount(-1) error = %v, want *ValidationError", err)
	}
}

func TestSetDirection(t *testing.T) {
	got, err := SetDirection(Forward)
	if err != nil || got != "WIND DIR FWD\n" {
		t.Errorf("SetDirection(Forward) = %q, %v; want %q, nil", got, err, "WIND DIR FWD\n")
	}
	got, err = SetDirection(Reverse)
	if err != nil || got != "WIND DIR REV\n" {
		t.Errorf("SetDirection(Reverse) = %q, %v; want %q, nil", got, err, "WIND DIR REV\n")
	}
	if _, err := SetDirection(Direction(7)); err == nil {
		t.Error("SetDirection(7) expected error, got nil")
	}
}

func TestSetSweepMode(t *testing.T) {
	tests := []struct {
		mode SweepMode
		want string
	}{
		{SweepFirmware, "WIND SWEEP FIRMWARE\n"},
		{SweepLive, "WIND SWEEP GUI\n"},
		{SweepPattern, "WIND SWEEP PATTERN\n"},
	}

	for _, tt := range tests {
		got, err := SetSweepMode(tt.mode)
		if err != nil {
			t.Fatalf("SetSweepMode(%v) error = %v", tt.mode, err)
		}
		if got != tt.want {
			t.Errorf("SetSweepMode(%v) = %q, want %q", tt.mode, got, tt.want)
		}
	}

	if _, err := SetSweepMode(SweepMode(9)); err == nil {
		t.Error("SetSweepMode(9) expected error, got nil")
	}
}

func TestUploadPattern(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2}

	got, err := UploadPattern(cfg)
	if err != nil {
		t.Fatalf("UploadPattern error = %v", err)
	}
	want := "WIND PATTERN 70 100 45 2\n"
	if got != want {
		t.Errorf("UploadPattern = %q, want %q", got, want)
	}

	bad := cfg
	bad.TurnsPerLayer = 1
	if _, err := UploadPattern(bad); err == nil {
		t.Error("UploadPattern with turns_per_layer=1 expected error, got nil")
	}
}

func TestSetScatter(t *testing.T) {
	got, err := SetScatter(2.5)
	if err != nil || got != "WIND SCATTER 2.5\n" {
		t.Errorf("SetScatter(2.5) = %q, %v; want %q, nil", got, err, "WIND SCATTER 2.5\n")
	}

	for _, bad := range []float64{-1, 101} {
		if _, err := SetScatter(bad); err == nil {
			t.Errorf("SetScatter(%v) expected error, got nil", bad)
		}
	}
}

func TestSetBobbin(t *testing.T) {
	g := BobbinGeometry{LengthMM: 60, WidthMM: 4, HeightMM: 9}

	got, err := SetBobbin(g)
	if err != nil {
		t.Fatalf("SetBobbin error = %v", err)
	}
	if got != "BOBBIN 60 4 9\n" {
		t.Errorf("SetBobbin = %q, want %q", got, "BOBBIN 60 4 9\n")
	}

	bad := g
	bad.HeightMM = 0
	if _, err := SetBobbin(bad); err == nil {
		t.Error("SetBobbin with zero height expected error, got nil")
	}
}

func TestSetWireDiameter(t *testing.T) {
	got, err := SetWireDiameter(0.063)
	if err != nil {
		t.Fatalf("SetWireDiameter error = %v", err)
	}
	// Plain decimal notation on the wire, never exponent form.
	if got != "WIRE_DIA 0.063\n" {
		t.Errorf("SetWireDiameter(0.063) = %q, want %q", got, "WIRE_DIA 0.063\n")
	}

	if _, err := SetWireDiameter(0); err == nil {
		t.Error("SetWireDiameter(0) expected error, got nil")
	}
}

func TestServoPosition(t *testing.T) {
	got, err := ServoPosition(84.5)
	if err != nil || got != "SERVO POS 84.5\n" {
		t.Errorf("ServoPosition(84.5) = %q, %v; want %q, nil", got, err, "SERVO POS 84.5\n")
	}

	for _, bad := range []float64{-1, 181} {
		if _, err := ServoPosition(bad); err == nil {
			t.Errorf("ServoPosition(%v) expected error, got nil", bad)
		}
	}
}

func TestServoCalibrate(t *testing.T) {
	got, err := ServoCalibrate(70, 100)
	if err != nil {
		t.Fatalf("ServoCalibrate error = %v", err)
	}
	if got != "SERVO CALIBRATE 70 100\n" {
		t.Errorf("ServoCalibrate = %q, want %q", got, "SERVO CALIBRATE 70 100\n")
	}

	if _, err := ServoCalibrate(100, 70); err == nil {
		t.Error("ServoCalibrate with inverted limits expected error, got nil")
	}
}

func TestStepperMove(t *testing.T) {
	got, err := StepperMove(3200)
	if err != nil || got != "STEPPER MOVE 3200\n" {
		t.Errorf("StepperMove(3200) = %q, %v; want %q, nil", got, err, "STEPPER MOVE 3200\n")
	}
	if got, _ := StepperMove(-200); got != "STEPPER MOVE -200\n" {
		t.Errorf("StepperMove(-200) = %q, want %q", got, "STEPPER MOVE -200\n")
	}
	if _, err := StepperMove(0); err == nil {
		t.Error("StepperMove(0) expected error, got nil")
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"kilo ohms", "6.5k", "CALC 6.5k\n", false},
		{"bare ohms", "5000", "CALC 5000r\n", false},
		{"explicit ohms", "5000r", "CALC 5000r\n", false},
		{"uppercase suffix", "6.5K", "CALC 6.5k\n", false},
		{"whitespace", "  6.5k ", "CALC 6.5k\n", false},
		{"empty", "", "", true},
		{"garbage", "abc", "", true},
		{"negative", "-5k", "", true},
		{"suffix only", "k", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Calculate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Calculate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Every successful command line is newline-terminated and 7-bit clean.
func TestCommandsAreNewlineTerminatedASCII(t *testing.T) {
	speed, _ := SetSpeed(4000, 5000)
	count, _ := SetTurnCount(8000)
	dir, _ := SetDirection(Reverse)
	wire, _ := SetWireDiameter(0.063)
	pos, _ := ServoPosition(70.3)

	for _, cmd := range []string{
		StartWinding(true), StopWinding(), speed, count, dir, wire, pos,
		SystemStatus(), SystemReset(),
	} {
		if !strings.HasSuffix(cmd, "\n") {
			t.Errorf("command %q not newline-terminated", cmd)
		}
		if strings.Count(cmd, "\n") != 1 {
			t.Errorf("command %q contains embedded newlines", cmd)
		}
		for _, r := range cmd {
			if r > 127 {
				t.Errorf("command %q contains non-ASCII rune %q", cmd, r)
			}
		}
	}
}
