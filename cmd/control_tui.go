// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/coilworks/winderctl/pkg/session"
	"github.com/coilworks/winderctl/pkg/winder"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const maxControlLogEntries = 100

// Focus states
const (
	focusTurnsInput = iota
	focusSpeedInput
	focusStartButton
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type controlLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctrl     *session.Controller
	preset   winder.Preset
	connInfo string
	maxSpeed int

	// Progress tracking
	turn     int
	servoPos float64
	progress progress.Model

	// Calculator results pushed by the firmware
	lastResistance    float64
	hasResistance     bool
	lastRequiredTurns int
	hasRequiredTurns  bool

	// Setup inputs
	turnsInput   textinput.Model
	speedInput   textinput.Model
	focusedField int

	// Event log
	eventLog []controlLogEntry

	// UI state
	width          int
	height         int
	connectionLost bool
	quitting       bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type telemetryMsg struct {
	event winder.Event
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctrl *session.Controller, preset winder.Preset, connInfo string, maxSpeed int) controlModel {
	turns := textinput.New()
	turns.Placeholder = "8000"
	turns.CharLimit = 6
	turns.Width = 8
	turns.SetValue(strconv.Itoa(preset.Control.TargetTurns))
	turns.Focus()

	speed := textinput.New()
	speed.Placeholder = "4000"
	speed.CharLimit = 5
	speed.Width = 8
	speed.SetValue(strconv.Itoa(preset.Control.Speed))

	return controlModel{
		ctrl:         ctrl,
		preset:       preset,
		connInfo:     connInfo,
		maxSpeed:     maxSpeed,
		progress:     progress.New(progress.WithDefaultGradient()),
		turnsInput:   turns,
		speedInput:   speed,
		focusedField: focusTurnsInput,
		eventLog:     make([]controlLogEntry, 0),
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-20, 60)

	case controlTickMsg:
		return m, controlTickCmd()

	case telemetryMsg:
		m.processTelemetry(msg.event)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	// Update the focused input
	var cmd tea.Cmd
	switch m.focusedField {
	case focusTurnsInput:
		m.turnsInput, cmd = m.turnsInput.Update(msg)
	case focusSpeedInput:
		m.speedInput, cmd = m.speedInput.Update(msg)
	}
	return m, cmd
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		if m.focusedField == focusStartButton {
			m.startWinding()
			return m, nil
		}
		return m.cycleFocus(1), nil

	case "ctrl+s":
		m.startWinding()
		return m, nil

	case "ctrl+x":
		if err := m.ctrl.Stop(); err != nil {
			m.addLogEntry(fmt.Sprintf("Stop failed: %v", err), true)
		} else {
			m.addLogEntry("Stop requested", false)
		}
		return m, nil

	case "ctrl+p":
		m.togglePause()
		return m, nil

	case "ctrl+u":
		m.updateSpeed()
		return m, nil
	}

	// Pass through to focused input
	var cmd tea.Cmd
	switch m.focusedField {
	case focusTurnsInput:
		m.turnsInput, cmd = m.turnsInput.Update(msg)
	case focusSpeedInput:
		m.speedInput, cmd = m.speedInput.Update(msg)
	}
	return m, cmd
}

func (m controlModel) cycleFocus(delta int) controlModel {
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount
	m.turnsInput.Blur()
	m.speedInput.Blur()
	switch m.focusedField {
	case focusTurnsInput:
		m.turnsInput.Focus()
	case focusSpeedInput:
		m.speedInput.Focus()
	}
	return m
}

//////////////////////////////////////////////////////////////
// Actions
//////////////////////////////////////////////////////////////

func (m *controlModel) startWinding() {
	turns, err := strconv.Atoi(strings.TrimSpace(m.turnsInput.Value()))
	if err != nil || turns <= 0 {
		m.addLogEntry("Invalid target turns", true)
		return
	}
	speed, err := strconv.Atoi(strings.TrimSpace(m.speedInput.Value()))
	if err != nil || speed <= 0 {
		m.addLogEntry("Invalid speed", true)
		return
	}

	direction, err := winder.ParseDirection(m.preset.Control.Direction)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	sweepMode, err := winder.ParseSweepMode(m.preset.Control.SweepMode)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}

	job := session.WindingJob{
		TargetTurns: turns,
		Speed:       speed,
		MaxSpeed:    m.maxSpeed,
		Direction:   direction,
		SweepMode:   sweepMode,
		Geometry:    m.preset.Geometry(),
		Sweep:       m.preset.Sweep(),
	}
	if err := m.ctrl.Start(job); err != nil {
		m.addLogEntry(fmt.Sprintf("Start failed: %v", err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Winding started: %d turns @ %d steps/s (%s)", turns, speed, sweepMode), false)
}

// updateSpeed relays the speed input to the firmware immediately, so the
// operator can slow a running job down for the final turns.
func (m *controlModel) updateSpeed() {
	speed, err := strconv.Atoi(strings.TrimSpace(m.speedInput.Value()))
	if err != nil || speed <= 0 {
		m.addLogEntry("Invalid speed", true)
		return
	}
	cmd, err := winder.SetSpeed(speed, m.maxSpeed)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	if err := m.ctrl.Send(cmd); err != nil {
		m.addLogEntry(fmt.Sprintf("Speed update failed: %v", err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Speed set to %d steps/s", speed), false)
}

func (m *controlModel) togglePause() {
	switch m.ctrl.WindState() {
	case session.Winding:
		if err := m.ctrl.Pause(); err != nil {
			m.addLogEntry(fmt.Sprintf("Pause failed: %v", err), true)
		}
	case session.Paused:
		if err := m.ctrl.Resume(); err != nil {
			m.addLogEntry(fmt.Sprintf("Resume failed: %v", err), true)
		}
	default:
		m.addLogEntry("No winding in progress", true)
	}
}

//////////////////////////////////////////////////////////////
// Telemetry
//////////////////////////////////////////////////////////////

func (m *controlModel) processTelemetry(ev winder.Event) {
	switch tev := ev.(type) {
	case winder.TurnUpdate:
		if tev.Turn > m.turn {
			m.turn = tev.Turn
		}
		m.servoPos = tev.ServoPos
	case winder.TurnCount:
		if tev.Turn > m.turn {
			m.turn = tev.Turn
		}
	case winder.Resistance:
		m.lastResistance = tev.Ohms
		m.hasResistance = true
		m.addLogEntry(fmt.Sprintf("Est. DC resistance: %.2f ohms", tev.Ohms), false)
	case winder.RequiredTurns:
		m.lastRequiredTurns = tev.Turns
		m.hasRequiredTurns = true
		m.addLogEntry(fmt.Sprintf("Required turns: %d", tev.Turns), false)
	case winder.WindingStopped:
		m.addLogEntry("Winding stopped", false)
	case winder.WindingPaused:
		m.addLogEntry("Winding paused", false)
	case winder.WindingResumed:
		m.addLogEntry("Winding resumed", false)
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, controlLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxControlLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxControlLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("WINDERCTL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch ^S=start ^X=stop ^P=pause ^U=speed", connStatus)))
	s.WriteString("\n\n")

	// Progress panel
	target := m.targetTurns()
	var progressView string
	if target > 0 {
		progressView = m.progress.ViewAs(min(float64(m.turn)/float64(target), 1.0))
	} else {
		progressView = m.progress.ViewAs(0)
	}
	progressPanel := fmt.Sprintf("%s %s / %d\n%s\n%s %s   %s %s",
		labelStyle.Render("Turns:"), valueStyle.Render(strconv.Itoa(m.turn)), target,
		progressView,
		labelStyle.Render("Servo:"), valueStyle.Render(fmt.Sprintf("%.1f°", m.servoPos)),
		labelStyle.Render("State:"), m.renderState(valueStyle, warningStyle))
	s.WriteString(boxStyle.Width(m.width - 4).Render(progressPanel))
	s.WriteString("\n\n")

	// Setup panel
	turnsBox := boxStyle
	speedBox := boxStyle
	startBtn := buttonStyle
	switch m.focusedField {
	case focusTurnsInput:
		turnsBox = focusedBoxStyle
	case focusSpeedInput:
		speedBox = focusedBoxStyle
	case focusStartButton:
		startBtn = focusedButtonStyle
	}
	setup := lipgloss.JoinHorizontal(lipgloss.Center,
		turnsBox.Render(labelStyle.Render("Target ")+m.turnsInput.View()),
		" ",
		speedBox.Render(labelStyle.Render("Speed ")+m.speedInput.View()),
		"  ",
		startBtn.Render("START"),
	)
	s.WriteString(setup)
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("  Sweep: %s  Dir: %s  Wire: %smm",
		m.preset.Control.SweepMode, m.preset.Control.Direction,
		strconv.FormatFloat(m.preset.Calculator.WireDiameterMM, 'f', -1, 64))))
	s.WriteString("\n\n")

	// Calculator results
	if m.hasResistance || m.hasRequiredTurns {
		var parts []string
		if m.hasResistance {
			parts = append(parts, fmt.Sprintf("%s %s",
				labelStyle.Render("Est. resistance:"),
				valueStyle.Render(fmt.Sprintf("%.2f ohms", m.lastResistance))))
		}
		if m.hasRequiredTurns {
			parts = append(parts, fmt.Sprintf("%s %s",
				labelStyle.Render("Required turns:"),
				valueStyle.Render(strconv.Itoa(m.lastRequiredTurns))))
		}
		s.WriteString(" " + strings.Join(parts, "   "))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render(" Events"))
	s.WriteString("\n")
	logLines := 8
	start := 0
	if len(m.eventLog) > logLines {
		start = len(m.eventLog) - logLines
	}
	for _, entry := range m.eventLog[start:] {
		line := fmt.Sprintf(" %s %s", entry.timestamp.Format("15:04:05"), entry.message)
		if entry.isError {
			s.WriteString(errorStyle.Render(line))
		} else {
			s.WriteString(headerStyle.Render(line))
		}
		s.WriteString("\n")
	}

	return s.String()
}

func (m controlModel) renderState(valueStyle, warningStyle lipgloss.Style) string {
	state := m.ctrl.WindState()
	switch state {
	case session.Winding:
		return valueStyle.Render(state.String())
	case session.Paused:
		return warningStyle.Render(state.String())
	default:
		return state.String()
	}
}

func (m controlModel) targetTurns() int {
	if turns, err := strconv.Atoi(strings.TrimSpace(m.turnsInput.Value())); err == nil {
		return turns
	}
	return 0
}
