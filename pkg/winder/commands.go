// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command builder functions produce single newline-terminated ASCII command
// lines ready for transmission. Each builder validates its numeric inputs
// before formatting; on invalid input it returns a *ValidationError and no
// command is emitted. The firmware is stateless about prior partial config,
// so callers re-send geometry before every start.

// Direction selects the spindle rotation direction.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "REV"
	}
	return "FWD"
}

// SweepMode selects who computes the wire-guide angle during a job.
type SweepMode int

const (
	// SweepFirmware leaves guide positioning entirely to the firmware.
	SweepFirmware SweepMode = iota
	// SweepLive recomputes the guide angle host-side per received turn
	// update and streams SERVO POS commands back.
	SweepLive
	// SweepPattern uploads the full recipe once; the firmware executes it
	// autonomously.
	SweepPattern
)

func (m SweepMode) String() string {
	switch m {
	case SweepLive:
		return "GUI"
	case SweepPattern:
		return "PATTERN"
	default:
		return "FIRMWARE"
	}
}

// ValidationError reports a command input that failed validation.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func invalidf(field string, value interface{}, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  fmt.Sprint(value),
		Reason: reason,
	}
}

// ftoa formats a float for the wire: plain decimal notation, shortest
// representation that round-trips. The firmware's parser does not accept
// exponent notation.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// StartWinding builds the winding start command. Verbose mode makes the
// firmware stream per-turn updates, which live sweep tracking depends on.
func StartWinding(verbose bool) string {
	if verbose {
		return "WIND START -V\n"
	}
	return "WIND START\n"
}

// StopWinding builds the winding stop command.
func StopWinding() string { return "WIND STOP\n" }

// PauseWinding builds the winding pause command.
func PauseWinding() string { return "WIND PAUSE\n" }

// ResumeWinding builds the winding resume command.
func ResumeWinding() string { return "WIND RESUME\n" }

// SetSpeed builds the spindle speed command. Speed is in stepper steps per
// second and must be within (0, maxSpeed].
func SetSpeed(speed, maxSpeed int) (string, error) {
	if speed <= 0 {
		return "", invalidf("speed", speed, "must be positive")
	}
	if maxSpeed > 0 && speed > maxSpeed {
		return "", invalidf("speed", speed, fmt.Sprintf("exceeds configured max %d", maxSpeed))
	}
	return fmt.Sprintf("WIND SPEED %d\n", speed), nil
}

// SetTurnCount builds the target turn count command.
func SetTurnCount(turns int) (string, error) {
	if turns <= 0 {
		return "", invalidf("turns", turns, "must be positive")
	}
	return fmt.Sprintf("WIND COUNT %d\n", turns), nil
}

// SetDirection builds the winding direction command.
func SetDirection(d Direction) (string, error) {
	if d != Forward && d != Reverse {
		return "", invalidf("direction", int(d), "unknown direction")
	}
	return fmt.Sprintf("WIND DIR %s\n", d), nil
}

// SetSweepMode builds the sweep mode selection command.
func SetSweepMode(m SweepMode) (string, error) {
	if m != SweepFirmware && m != SweepLive && m != SweepPattern {
		return "", invalidf("sweep_mode", int(m), "unknown sweep mode")
	}
	return fmt.Sprintf("WIND SWEEP %s\n", m), nil
}

// UploadPattern builds the pattern-mode recipe command from a sweep config.
// The firmware replays the recipe autonomously once winding starts.
func UploadPattern(cfg SweepConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("WIND PATTERN %s %s %d %s\n",
		ftoa(cfg.MinAngle), ftoa(cfg.MaxAngle), cfg.TurnsPerLayer, ftoa(cfg.ScatterPercent)), nil
}

// SetScatter builds the live scatter-percentage update command.
func SetScatter(percent float64) (string, error) {
	if !finite(percent) || percent < 0 || percent > 100 {
		return "", invalidf("scatter", percent, "must be within [0, 100]")
	}
	return fmt.Sprintf("WIND SCATTER %s\n", ftoa(percent)), nil
}

// SetBobbin builds the bobbin geometry command (length, width, height in mm).
func SetBobbin(g BobbinGeometry) (string, error) {
	for _, dim := range []struct {
		name  string
		value float64
	}{
		{"bobbin length", g.LengthMM},
		{"bobbin width", g.WidthMM},
		{"bobbin height", g.HeightMM},
	} {
		if !finite(dim.value) || dim.value <= 0 {
			return "", invalidf(dim.name, dim.value, "must be a positive finite number")
		}
	}
	return fmt.Sprintf("BOBBIN %s %s %s\n",
		ftoa(g.LengthMM), ftoa(g.WidthMM), ftoa(g.HeightMM)), nil
}

// SetWireDiameter builds the wire diameter command (mm).
func SetWireDiameter(diaMM float64) (string, error) {
	if !finite(diaMM) || diaMM <= 0 {
		return "", invalidf("wire diameter", diaMM, "must be a positive finite number")
	}
	return fmt.Sprintf("WIRE_DIA %s\n", ftoa(diaMM)), nil
}

// ServoPosition builds the absolute wire-guide angle command.
func ServoPosition(angle float64) (string, error) {
	if !finite(angle) || angle < 0 || angle > 180 {
		return "", invalidf("servo angle", angle, "must be within [0, 180]")
	}
	return fmt.Sprintf("SERVO POS %s\n", ftoa(angle)), nil
}

// ServoCalibrate builds the servo travel-limit calibration command. The
// limits persist in the firmware's EEPROM.
func ServoCalibrate(minAngle, maxAngle float64) (string, error) {
	if !finite(minAngle) || !finite(maxAngle) {
		return "", invalidf("servo limits", fmt.Sprintf("%v %v", minAngle, maxAngle), "must be finite")
	}
	if minAngle < 0 || maxAngle > 180 || minAngle >= maxAngle {
		return "", invalidf("servo limits", fmt.Sprintf("%v %v", minAngle, maxAngle),
			"must satisfy 0 <= min < max <= 180")
	}
	return fmt.Sprintf("SERVO CALIBRATE %s %s\n", ftoa(minAngle), ftoa(maxAngle)), nil
}

// ServoEnable builds the servo power enable/disable command.
func ServoEnable(on bool) string {
	if on {
		return "SERVO ENABLE\n"
	}
	return "SERVO DISABLE\n"
}

// StepperEnable builds the stepper driver enable/disable command.
func StepperEnable(on bool) string {
	if on {
		return "STEPPER ENABLE\n"
	}
	return "STEPPER DISABLE\n"
}

// StepperMove builds a relative stepper move in steps. Negative steps
// reverse the spindle. Zero is rejected as a no-op.
func StepperMove(steps int) (string, error) {
	if steps == 0 {
		return "", invalidf("steps", steps, "must be non-zero")
	}
	return fmt.Sprintf("STEPPER MOVE %d\n", steps), nil
}

// Calculate builds the resistance calculation request. The input accepts the
// formats the operator types: "6.5k", "5000", "5000r". A bare number is
// treated as ohms.
func Calculate(resistance string) (string, error) {
	text := strings.ToLower(strings.TrimSpace(resistance))
	if text == "" {
		return "", invalidf("resistance", resistance, "must not be empty")
	}

	suffix := "r"
	numeric := text
	if strings.HasSuffix(text, "k") || strings.HasSuffix(text, "r") {
		suffix = text[len(text)-1:]
		numeric = text[:len(text)-1]
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil || !finite(value) || value <= 0 {
		return "", invalidf("resistance", resistance, "use formats like 6.5k, 5000 or 5000r")
	}

	return fmt.Sprintf("CALC %s%s\n", numeric, suffix), nil
}

// SystemStatus builds the status query sent right after connecting.
func SystemStatus() string { return "SYS STATUS\n" }

// SystemReset builds the command that resets the firmware's EEPROM-backed
// settings to defaults. The device typically restarts afterwards.
func SystemReset() string { return "SYS RESET\n" }
