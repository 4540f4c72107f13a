// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package winder

import (
	"fmt"
	"time"
)

// Stats tracks telemetry line statistics for one connection. Used by the
// monitor command's exit summary.
type Stats struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	TotalLines  uint64
	TurnUpdates uint64
	TurnCounts  uint64
	Resistances uint64
	Required    uint64
	StatusLines uint64
	ParseMisses uint64

	// Rates (calculated)
	LineRate float64 // lines/sec
	MissRate float64 // unrecognized lines/sec
}

// NewStats creates a statistics tracker.
func NewStats() *Stats {
	now := time.Now()
	return &Stats{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one classified telemetry event.
func (s *Stats) Update(ev Event) {
	s.TotalLines++

	switch ev.(type) {
	case TurnUpdate:
		s.TurnUpdates++
	case TurnCount:
		s.TurnCounts++
	case Resistance:
		s.Resistances++
	case RequiredTurns:
		s.Required++
	case WindingStopped, WindingPaused, WindingResumed:
		s.StatusLines++
	case Unrecognized:
		s.ParseMisses++
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates recomputes the per-second rates.
func (s *Stats) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		s.MissRate = float64(s.ParseMisses) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Stats) String() string {
	s.CalculateRates()

	var recognizedPercent float64
	if s.TotalLines > 0 {
		recognizedPercent = float64(s.TotalLines-s.ParseMisses) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Recognized:      %8d (%.1f%%)\n", s.TotalLines-s.ParseMisses, recognizedPercent)
	if s.TurnUpdates > 0 {
		result += fmt.Sprintf("Turn Updates:    %8d\n", s.TurnUpdates)
	}
	if s.TurnCounts > 0 {
		result += fmt.Sprintf("Turn Counts:     %8d\n", s.TurnCounts)
	}
	if s.StatusLines > 0 {
		result += fmt.Sprintf("Status Lines:    %8d\n", s.StatusLines)
	}
	if s.Resistances > 0 {
		result += fmt.Sprintf("Resistance:      %8d\n", s.Resistances)
	}
	if s.Required > 0 {
		result += fmt.Sprintf("Required Turns:  %8d\n", s.Required)
	}
	if s.ParseMisses > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d\n", s.ParseMisses)
	}
	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", s.LineRate)
	result += "================================\n"

	return result
}

// Reset clears all counters.
func (s *Stats) Reset() {
	now := time.Now()
	*s = Stats{StartTime: now, LastUpdateTime: now}
}
