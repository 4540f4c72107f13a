// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"context"
	"fmt"
	"math"
	"time"
)

// BobbinGeometry describes the spool core the wire is wound around.
// All dimensions are millimeters.
type BobbinGeometry struct {
	LengthMM       float64
	WidthMM        float64
	HeightMM       float64
	WireDiameterMM float64
}

// TurnsPerLayer computes how many turns fit in one guide sweep across the
// bobbin. Returns ok=false when the wire diameter is not positive; the UI
// shows "N/A" in that case instead of failing.
func TurnsPerLayer(heightMM, wireDiaMM float64) (int, bool) {
	if wireDiaMM <= 0 || heightMM <= 0 {
		return 0, false
	}
	return int(heightMM / wireDiaMM), true
}

// SweepConfig describes the wire-guide travel for one winding job.
//
// Derived values are never stored: the effective range and pitch are
// recomputed from these four fields so the host and firmware, which
// implement the same formula independently, cannot drift through stale
// cached state.
type SweepConfig struct {
	MinAngle       float64
	MaxAngle       float64
	TurnsPerLayer  int
	ScatterPercent float64
}

// Validate checks the config against the ranges the firmware accepts.
func (c SweepConfig) Validate() error {
	if !finite(c.MinAngle) || !finite(c.MaxAngle) {
		return invalidf("sweep angles", fmt.Sprintf("%v %v", c.MinAngle, c.MaxAngle), "must be finite")
	}
	if c.MinAngle >= c.MaxAngle {
		return invalidf("sweep angles", fmt.Sprintf("%v %v", c.MinAngle, c.MaxAngle),
			"min angle must be below max angle")
	}
	if c.TurnsPerLayer <= 1 {
		return invalidf("turns per layer", c.TurnsPerLayer, "must be greater than 1")
	}
	if !finite(c.ScatterPercent) || c.ScatterPercent < 0 || c.ScatterPercent > 100 {
		return invalidf("scatter", c.ScatterPercent, "must be within [0, 100]")
	}
	return nil
}

// EffectiveRange derives the scatter-reduced travel limits and the per-turn
// pitch. Scatter shrinks the sweep symmetrically to keep wire from piling up
// at the bobbin edges. If the scatter amount would invert the range the
// limits collapse to the zero-width midpoint rather than crossing.
func (c SweepConfig) EffectiveRange() (effMin, effMax, pitch float64) {
	angleRange := c.MaxAngle - c.MinAngle
	scatter := angleRange * c.ScatterPercent / 100

	effMin = c.MinAngle + scatter/2
	effMax = c.MaxAngle - scatter/2
	if effMin > effMax {
		mid := (c.MinAngle + c.MaxAngle) / 2
		effMin, effMax = mid, mid
	}

	if c.TurnsPerLayer > 1 {
		pitch = (effMax - effMin) / float64(c.TurnsPerLayer-1)
	}
	return effMin, effMax, pitch
}

// PositionForTurn computes the guide angle for the given turn. Even layers
// sweep from the effective minimum up, odd layers back down, producing the
// boustrophedon fill pattern. The result is clamped to the effective range.
//
// The firmware runs the same formula: reported turn N is answered with the
// command for position N, not N+1. Both sides must keep that convention or
// the guide visibly drifts from the wire.
//
// Returns ok=false for TurnsPerLayer <= 1, where no pitch is defined;
// callers skip the update.
func (c SweepConfig) PositionForTurn(turn int) (float64, bool) {
	if c.TurnsPerLayer <= 1 || turn < 0 {
		return 0, false
	}

	effMin, effMax, pitch := c.EffectiveRange()

	layer := turn / c.TurnsPerLayer
	turnInLayer := turn % c.TurnsPerLayer

	var pos float64
	if layer%2 == 0 {
		pos = effMin + float64(turnInLayer)*pitch
	} else {
		pos = effMax - float64(turnInLayer)*pitch
	}

	return math.Min(math.Max(pos, effMin), effMax), true
}

// PatternSteps expands the config into the explicit per-turn angles of one
// layer pair (one up sweep, one down sweep). Used by the test-sweep command
// and to preview a pattern-mode recipe before upload.
func (c SweepConfig) PatternSteps() []float64 {
	if c.TurnsPerLayer <= 1 {
		return nil
	}
	steps := make([]float64, 0, 2*c.TurnsPerLayer)
	for turn := 0; turn < 2*c.TurnsPerLayer; turn++ {
		pos, _ := c.PositionForTurn(turn)
		steps = append(steps, pos)
	}
	return steps
}

// Sweeper drives a test sweep over a config's pattern steps at a fixed
// interval. It is restartable and cancelable: Run blocks until the pattern
// completes or the context is canceled, whichever comes first.
type Sweeper struct {
	Config   SweepConfig
	Interval time.Duration

	// Step receives each (step index, total steps, angle) tick. A Step
	// callback returning an error stops the sweep and Run returns that
	// error.
	Step func(step, total int, angle float64) error
}

// Run executes one full pass over the pattern steps, invoking Step per tick.
// The cancellation check happens every iteration, so a canceled context
// stops the sweep within one interval.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}

	interval := s.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	steps := s.Config.PatternSteps()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, angle := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if s.Step != nil {
			if err := s.Step(i, len(steps), angle); err != nil {
				return err
			}
		}
	}
	return nil
}
