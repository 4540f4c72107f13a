// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/coilworks/winderctl/internal/logger"
	"github.com/coilworks/winderctl/pkg/winder"
)

// ConnState is the connection half of the controller's state machine.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// WindState is the winding half of the controller's state machine. It is
// orthogonal to ConnState except that losing the connection forces Idle.
type WindState int

const (
	Idle WindState = iota
	Winding
	Paused
)

func (s WindState) String() string {
	switch s {
	case Winding:
		return "winding"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// WindingJob is the complete setup for one coil: everything Start sends to
// the firmware before the motor turns.
type WindingJob struct {
	TargetTurns int
	Speed       int
	MaxSpeed    int
	Direction   winder.Direction
	SweepMode   winder.SweepMode
	Geometry    winder.BobbinGeometry
	Sweep       winder.SweepConfig
}

// Controller drives one winder session: it owns the transport, parses its
// telemetry, tracks the winding state machine, and in live sweep mode
// closes the turn-to-servo loop.
//
// Observers registered via Notify run on the controller's dispatch
// goroutine and must not block.
type Controller struct {
	log       *logger.Logger
	transport *Transport

	mu           sync.Mutex
	connState    ConnState
	windState    WindState
	job          WindingJob
	turn         int
	servoPos     float64
	onEvent      func(winder.Event)
	onDisconnect func(error)

	dispatchDone chan struct{}
}

// NewController returns an idle, disconnected controller. A nil log
// discards session logging.
func NewController(log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		log:       log,
		transport: NewTransport(log),
	}
}

// Notify registers fn to receive every parsed telemetry event.
func (c *Controller) Notify(fn func(winder.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// NotifyDisconnect registers fn to be called when the connection drops
// unexpectedly. A deliberate Disconnect does not trigger it.
func (c *Controller) NotifyDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// ConnState returns the current connection state.
func (c *Controller) ConnState() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// WindState returns the current winding state.
func (c *Controller) WindState() WindState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windState
}

// Progress returns the last reported turn count and servo position.
func (c *Controller) Progress() (turn int, servoPos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn, c.servoPos
}

// Connect opens the named serial port at the given baud rate (8N1) and
// attaches the session to it. The read timeout bounds how long a
// disconnect can go unnoticed; zero keeps the port's default.
func (c *Controller) Connect(port string, baud int, readTimeout time.Duration) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	c.setConnState(Connecting)
	p, err := serial.Open(port, mode)
	if err != nil {
		c.setConnState(Disconnected)
		return fmt.Errorf("open serial port %s: %w", port, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			p.Close()
			c.setConnState(Disconnected)
			return fmt.Errorf("set read timeout on %s: %w", port, err)
		}
	}

	if err := c.ConnectConn(p); err != nil {
		p.Close()
		return err
	}
	return nil
}

// ConnectConn attaches the session to an already-open connection, such as
// a WebSocket bridge. On success it queries the firmware status so the
// operator sees the device's current settings immediately.
func (c *Controller) ConnectConn(conn io.ReadWriteCloser) error {
	c.setConnState(Connecting)
	if err := c.transport.Open(conn); err != nil {
		c.setConnState(Disconnected)
		return err
	}

	c.mu.Lock()
	c.connState = Connected
	c.windState = Idle
	c.turn = 0
	c.dispatchDone = make(chan struct{})
	done := c.dispatchDone
	c.mu.Unlock()

	go c.dispatch(done, c.transport.Events())

	c.send(winder.SystemStatus())
	return nil
}

// Disconnect closes the connection and waits for the dispatch goroutine to
// exit. It is idempotent and safe to call from any state.
func (c *Controller) Disconnect() {
	c.transport.Close()

	c.mu.Lock()
	done := c.dispatchDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.connState = Disconnected
	c.windState = Idle
	c.mu.Unlock()
}

// Start configures the firmware for the job and begins winding. The full
// setup is re-sent on every start so the firmware state always matches
// what the operator sees, even after a reconnect.
func (c *Controller) Start(job WindingJob) error {
	c.mu.Lock()
	if c.connState != Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.windState != Idle {
		c.mu.Unlock()
		return fmt.Errorf("winding already in progress (%s)", c.windState)
	}
	c.mu.Unlock()

	if job.TargetTurns <= 0 {
		return errors.New("target turns must be positive")
	}

	cmds := make([]string, 0, 8)
	appendCmd := func(cmd string, err error) error {
		if err != nil {
			return err
		}
		cmds = append(cmds, cmd)
		return nil
	}

	if job.SweepMode == winder.SweepPattern {
		if err := appendCmd(winder.UploadPattern(job.Sweep)); err != nil {
			return err
		}
	}
	if err := appendCmd(winder.SetBobbin(job.Geometry)); err != nil {
		return err
	}
	if err := appendCmd(winder.SetWireDiameter(job.Geometry.WireDiameterMM)); err != nil {
		return err
	}
	if err := appendCmd(winder.SetSweepMode(job.SweepMode)); err != nil {
		return err
	}
	if err := appendCmd(winder.SetSpeed(job.Speed, job.MaxSpeed)); err != nil {
		return err
	}
	if err := appendCmd(winder.SetTurnCount(job.TargetTurns)); err != nil {
		return err
	}
	if err := appendCmd(winder.SetDirection(job.Direction)); err != nil {
		return err
	}
	cmds = append(cmds, winder.StartWinding(true))

	for _, cmd := range cmds {
		if err := c.transport.WriteLine(cmd); err != nil {
			return fmt.Errorf("send %q: %w", cmd, err)
		}
	}

	c.mu.Lock()
	c.job = job
	c.turn = 0
	c.windState = Winding
	c.mu.Unlock()
	return nil
}

// Stop halts the winding job. The state flips to Idle when the firmware
// confirms with its stopped message, not when the command is sent.
func (c *Controller) Stop() error {
	return c.sendChecked(winder.StopWinding())
}

// Pause suspends winding; only valid while a job is running.
func (c *Controller) Pause() error {
	if c.WindState() != Winding {
		return errors.New("no winding in progress")
	}
	return c.sendChecked(winder.PauseWinding())
}

// Resume continues a paused job.
func (c *Controller) Resume() error {
	if c.WindState() != Paused {
		return errors.New("winding is not paused")
	}
	return c.sendChecked(winder.ResumeWinding())
}

// Send relays a prebuilt command line to the device.
func (c *Controller) Send(cmd string) error {
	return c.sendChecked(cmd)
}

// sendChecked writes a command and surfaces the error to the caller.
func (c *Controller) sendChecked(cmd string) error {
	if err := c.transport.WriteLine(cmd); err != nil {
		return err
	}
	return nil
}

// send writes a command and only logs a failure. Used where the caller has
// no error path, such as the telemetry dispatch loop.
func (c *Controller) send(cmd string) {
	if err := c.transport.WriteLine(cmd); err != nil {
		c.log.Warnw("dropping command", "command", cmd, "error", err)
	}
}

// dispatch consumes transport events until the read loop closes the
// channel. It is the only goroutine that mutates the winding state machine
// from telemetry.
func (c *Controller) dispatch(done chan struct{}, events <-chan TransportEvent) {
	defer close(done)

	for ev := range events {
		switch tev := ev.(type) {
		case LineReceived:
			c.handleLine(tev.Line)
		case ConnectionLost:
			c.mu.Lock()
			c.connState = Disconnected
			c.windState = Idle
			fn := c.onDisconnect
			c.mu.Unlock()
			if fn != nil {
				fn(tev.Err)
			}
		}
	}
}

func (c *Controller) handleLine(line string) {
	ev := winder.ParseLine(line)

	c.mu.Lock()
	switch tev := ev.(type) {
	case winder.TurnUpdate:
		if tev.Turn > c.turn {
			c.turn = tev.Turn
		}
		c.servoPos = tev.ServoPos
		if c.windState == Winding && c.job.SweepMode == winder.SweepLive {
			c.trackTurnLocked(tev.Turn)
		}
	case winder.TurnCount:
		if tev.Turn > c.turn {
			c.turn = tev.Turn
		}
	case winder.WindingStopped:
		c.windState = Idle
	case winder.WindingPaused:
		if c.windState == Winding {
			c.windState = Paused
		}
	case winder.WindingResumed:
		if c.windState == Paused {
			c.windState = Winding
		}
	case winder.Unrecognized:
		c.log.Debugw("unrecognized telemetry", "line", tev.Raw)
	}
	fn := c.onEvent
	c.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}

// trackTurnLocked closes the live-sweep loop: the angle for the reported
// turn goes straight back out as a servo command. A failed send is logged
// and tracking continues; one missed step self-corrects on the next turn.
func (c *Controller) trackTurnLocked(turn int) {
	pos, ok := c.job.Sweep.PositionForTurn(turn)
	if !ok {
		return
	}
	cmd, err := winder.ServoPosition(pos)
	if err != nil {
		c.log.Warnw("sweep position out of servo range", "turn", turn, "angle", pos)
		return
	}
	c.send(cmd)
}

func (c *Controller) setConnState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connState = s
}
