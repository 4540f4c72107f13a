// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

const angleEps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < angleEps
}

func TestTurnsPerLayer(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		dia    float64
		want   int
		wantOK bool
	}{
		{"typical pickup", 9.0, 0.063, 142, true},
		{"exact fit", 10.0, 0.5, 20, true},
		{"zero diameter", 9.0, 0, 0, false},
		{"negative diameter", 9.0, -0.1, 0, false},
		{"zero height", 0, 0.063, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TurnsPerLayer(tt.height, tt.dia)
			if ok != tt.wantOK {
				t.Fatalf("TurnsPerLayer(%v, %v) ok = %v, want %v", tt.height, tt.dia, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("TurnsPerLayer(%v, %v) = %d, want %d", tt.height, tt.dia, got, tt.want)
			}
		})
	}
}

// Worked example from the firmware's reference configuration:
// {min=70, max=100, tpl=45, scatter=2%}.
func TestEffectiveRange(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2}

	effMin, effMax, pitch := cfg.EffectiveRange()
	if !almostEqual(effMin, 70.3) {
		t.Errorf("effMin = %v, want 70.3", effMin)
	}
	if !almostEqual(effMax, 99.7) {
		t.Errorf("effMax = %v, want 99.7", effMax)
	}
	wantPitch := (99.7 - 70.3) / 44
	if !almostEqual(pitch, wantPitch) {
		t.Errorf("pitch = %v, want %v", pitch, wantPitch)
	}
}

func TestEffectiveRange_FullScatterCollapsesToMidpoint(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 100}

	effMin, effMax, pitch := cfg.EffectiveRange()
	if !almostEqual(effMin, 85) || !almostEqual(effMax, 85) {
		t.Errorf("effective range = [%v, %v], want zero-width [85, 85]", effMin, effMax)
	}
	if !almostEqual(pitch, 0) {
		t.Errorf("pitch = %v, want 0", pitch)
	}
}

func TestPositionForTurn(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2}

	tests := []struct {
		name string
		turn int
		want float64
	}{
		{"layer 0 start", 0, 70.3},
		{"layer 0 end", 44, 99.7},
		{"layer 1 start repeats end angle", 45, 99.7},
		{"layer 1 end", 89, 70.3},
		{"layer 2 start", 90, 70.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cfg.PositionForTurn(tt.turn)
			if !ok {
				t.Fatalf("PositionForTurn(%d) ok = false", tt.turn)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("PositionForTurn(%d) = %v, want %v", tt.turn, got, tt.want)
			}
		})
	}
}

func TestPositionForTurn_Monotonic(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2}

	// Layer 0: non-decreasing.
	prev := math.Inf(-1)
	for turn := 0; turn < cfg.TurnsPerLayer; turn++ {
		pos, ok := cfg.PositionForTurn(turn)
		if !ok {
			t.Fatalf("PositionForTurn(%d) ok = false", turn)
		}
		if pos < prev-angleEps {
			t.Fatalf("layer 0 not monotonic: turn %d pos %v < prev %v", turn, pos, prev)
		}
		prev = pos
	}

	// Layer 1: non-increasing.
	prev = math.Inf(1)
	for turn := cfg.TurnsPerLayer; turn < 2*cfg.TurnsPerLayer; turn++ {
		pos, ok := cfg.PositionForTurn(turn)
		if !ok {
			t.Fatalf("PositionForTurn(%d) ok = false", turn)
		}
		if pos > prev+angleEps {
			t.Fatalf("layer 1 not monotonic: turn %d pos %v > prev %v", turn, pos, prev)
		}
		prev = pos
	}
}

func TestPositionForTurn_AlwaysClamped(t *testing.T) {
	configs := []SweepConfig{
		{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2},
		{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 2, ScatterPercent: 0},
		{MinAngle: 0, MaxAngle: 180, TurnsPerLayer: 143, ScatterPercent: 50},
		{MinAngle: 85, MaxAngle: 86, TurnsPerLayer: 10, ScatterPercent: 100},
	}

	for _, cfg := range configs {
		effMin, effMax, _ := cfg.EffectiveRange()
		for turn := 0; turn < 5*cfg.TurnsPerLayer; turn++ {
			pos, ok := cfg.PositionForTurn(turn)
			if !ok {
				t.Fatalf("PositionForTurn(%d) ok = false for %+v", turn, cfg)
			}
			if pos < effMin-angleEps || pos > effMax+angleEps {
				t.Fatalf("PositionForTurn(%d) = %v outside [%v, %v] for %+v",
					turn, pos, effMin, effMax, cfg)
			}
		}
	}
}

func TestPositionForTurn_Degenerate(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 1, ScatterPercent: 0}
	if _, ok := cfg.PositionForTurn(0); ok {
		t.Error("PositionForTurn with turns_per_layer=1 expected ok=false")
	}

	cfg.TurnsPerLayer = 45
	if _, ok := cfg.PositionForTurn(-1); ok {
		t.Error("PositionForTurn(-1) expected ok=false")
	}
}

func TestSweepConfig_Validate(t *testing.T) {
	valid := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name string
		cfg  SweepConfig
	}{
		{"inverted angles", SweepConfig{MinAngle: 100, MaxAngle: 70, TurnsPerLayer: 45}},
		{"equal angles", SweepConfig{MinAngle: 70, MaxAngle: 70, TurnsPerLayer: 45}},
		{"single turn layer", SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 1}},
		{"scatter above 100", SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 101}},
		{"nan angle", SweepConfig{MinAngle: math.NaN(), MaxAngle: 100, TurnsPerLayer: 45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil for %+v, want error", tt.cfg)
			}
		})
	}
}

func TestPatternSteps(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 45, ScatterPercent: 2}

	steps := cfg.PatternSteps()
	if len(steps) != 90 {
		t.Fatalf("len(PatternSteps()) = %d, want 90", len(steps))
	}
	if !almostEqual(steps[0], 70.3) {
		t.Errorf("steps[0] = %v, want 70.3", steps[0])
	}
	if !almostEqual(steps[44], 99.7) {
		t.Errorf("steps[44] = %v, want 99.7", steps[44])
	}
	if !almostEqual(steps[89], 70.3) {
		t.Errorf("steps[89] = %v, want 70.3", steps[89])
	}

	degenerate := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 1}
	if got := degenerate.PatternSteps(); got != nil {
		t.Errorf("PatternSteps() with turns_per_layer=1 = %v, want nil", got)
	}
}

func TestSweeper_RunCompletes(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 3, ScatterPercent: 0}

	var steps []float64
	s := &Sweeper{
		Config:   cfg,
		Interval: time.Millisecond,
		Step: func(step, total int, angle float64) error {
			if total != 6 {
				t.Errorf("total = %d, want 6", total)
			}
			steps = append(steps, angle)
			return nil
		},
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(steps) != 6 {
		t.Fatalf("got %d steps, want 6", len(steps))
	}
}

func TestSweeper_RunCancel(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 100, ScatterPercent: 0}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		Config:   cfg,
		Interval: time.Millisecond,
		Step: func(step, total int, angle float64) error {
			if step == 3 {
				cancel()
			}
			return nil
		},
	}

	err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestSweeper_StepErrorStops(t *testing.T) {
	cfg := SweepConfig{MinAngle: 70, MaxAngle: 100, TurnsPerLayer: 50, ScatterPercent: 0}

	sentinel := errors.New("send failed")
	calls := 0
	s := &Sweeper{
		Config:   cfg,
		Interval: time.Millisecond,
		Step: func(step, total int, angle float64) error {
			calls++
			return sentinel
		},
	}

	if err := s.Run(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("Run() error = %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("Step called %d times, want 1", calls)
	}
}

func TestSweeper_InvalidConfig(t *testing.T) {
	s := &Sweeper{Config: SweepConfig{MinAngle: 100, MaxAngle: 70, TurnsPerLayer: 45}}
	if err := s.Run(context.Background()); err == nil {
		t.Error("Run() with invalid config expected error, got nil")
	}
}
