// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"regexp"
	"strconv"
	"strings"
)

// Event is a single parsed telemetry line. Events are immutable values
// produced once per line and consumed by the session controller.
type Event interface {
	isEvent()
}

// TurnUpdate reports winding progress with the guide angle the firmware is
// currently commanding. Carries an implicit turn-count update.
type TurnUpdate struct {
	Turn     int
	ServoPos float64
}

// TurnCount reports winding progress without a guide angle.
type TurnCount struct {
	Turn int
}

// Resistance reports the firmware's estimated DC resistance of the coil.
type Resistance struct {
	Ohms float64
}

// RequiredTurns reports the turn count the firmware's resistance calculator
// derived from the last CALC command.
type RequiredTurns struct {
	Turns int
}

// WindingStopped is emitted when the firmware reports the job ended, whether
// by completion or an explicit stop.
type WindingStopped struct{}

// WindingPaused is emitted when the firmware confirms a pause.
type WindingPaused struct{}

// WindingResumed is emitted when the firmware confirms a resume.
type WindingResumed struct{}

// Unrecognized carries a line that matched no known pattern. It is logged
// and displayed but never acted on.
type Unrecognized struct {
	Raw string
}

func (TurnUpdate) isEvent()     {}
func (TurnCount) isEvent()      {}
func (Resistance) isEvent()     {}
func (RequiredTurns) isEvent()  {}
func (WindingStopped) isEvent() {}
func (WindingPaused) isEvent()  {}
func (WindingResumed) isEvent() {}
func (Unrecognized) isEvent()   {}

// Telemetry line patterns, tried in priority order. The firmware prefixes
// verbose turn updates with arbitrary indentation, so all patterns are
// substring searches rather than full-line matches.
var (
	turnUpdateRe    = regexp.MustCompile(`-> Turn: (\d+) \| Servo Pos: ([\d.]+)`)
	turnCountRe     = regexp.MustCompile(`Current Turns: (\d+)`)
	resistanceRe    = regexp.MustCompile(`Est\. DC Resistance: ([\d.]+) Ohms`)
	requiredTurnsRe = regexp.MustCompile(`Required Turns:\s*(\d+)`)
)

// Status phrases reported by the winding loop. Matched as substrings so
// trailing detail ("Winding complete! Total turns: 8000") still classifies.
var statusPhrases = []struct {
	phrase string
	event  Event
}{
	{"Winding stopped", WindingStopped{}},
	{"Winding complete", WindingStopped{}},
	{"Winding paused", WindingPaused{}},
	{"Winding resumed", WindingResumed{}},
}

// ParseLine classifies one telemetry line. Patterns are tried in a fixed
// priority order and the first match wins; a line never yields two events.
func ParseLine(line string) Event {
	if m := turnUpdateRe.FindStringSubmatch(line); m != nil {
		turn, err1 := strconv.Atoi(m[1])
		pos, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return TurnUpdate{Turn: turn, ServoPos: pos}
		}
		return Unrecognized{Raw: line}
	}

	if m := turnCountRe.FindStringSubmatch(line); m != nil {
		if turn, err := strconv.Atoi(m[1]); err == nil {
			return TurnCount{Turn: turn}
		}
		return Unrecognized{Raw: line}
	}

	for _, s := range statusPhrases {
		if strings.Contains(line, s.phrase) {
			return s.event
		}
	}

	if m := resistanceRe.FindStringSubmatch(line); m != nil {
		if ohms, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Resistance{Ohms: ohms}
		}
		return Unrecognized{Raw: line}
	}

	if m := requiredTurnsRe.FindStringSubmatch(line); m != nil {
		if turns, err := strconv.Atoi(m[1]); err == nil {
			return RequiredTurns{Turns: turns}
		}
		return Unrecognized{Raw: line}
	}

	return Unrecognized{Raw: line}
}
