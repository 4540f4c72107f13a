// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

// Package session owns the lifecycle of one connection to the winder
// firmware: the background read loop, line framing, and the state machine
// that turns operator intent into the command sequences the firmware
// expects.
package session

import (
	"errors"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/coilworks/winderctl/internal/logger"
	"github.com/coilworks/winderctl/pkg/winder"
)

// ErrNotConnected is returned by WriteLine when no connection is open.
var ErrNotConnected = errors.New("not connected")

// ListPorts enumerates the serial ports visible to the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// TransportEvent is a notification from the transport's read loop.
type TransportEvent interface {
	isTransportEvent()
}

// LineReceived carries one complete telemetry line.
type LineReceived struct {
	Line string
}

// ConnectionLost reports that the read loop observed a fatal read error.
// It is emitted at most once per Open.
type ConnectionLost struct {
	Err error
}

func (LineReceived) isTransportEvent()   {}
func (ConnectionLost) isTransportEvent() {}

const eventBuffer = 256

// Transport owns a single byte-stream connection and its read loop. One
// read loop runs per open connection; Open blocks until the previous loop
// has fully exited, so two loops never read the same stream.
//
// All methods are safe for concurrent use.
type Transport struct {
	log *logger.Logger

	mu         sync.Mutex
	conn       io.ReadWriteCloser
	running    bool
	readerDone chan struct{}
	lostOnce   *sync.Once
	events     chan TransportEvent
}

// NewTransport returns a closed transport. A nil log discards transport
// logging.
func NewTransport(log *logger.Logger) *Transport {
	if log == nil {
		log = logger.Nop()
	}
	return &Transport{log: log}
}

// Events returns the channel the current connection's read loop publishes
// on; the loop closes it when it exits, so consumers can range over it.
// Each Open replaces the channel, so fetch it after connecting. The
// channel is buffered; when a consumer stalls long enough to fill it,
// further lines are dropped with a warning rather than blocking the read
// loop. Returns nil before the first Open.
func (t *Transport) Events() <-chan TransportEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// Connected reports whether a connection is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Open adopts conn and starts the read loop. It fails if the transport is
// already open. If a previous loop is still winding down after Close, Open
// waits for it to exit first.
func (t *Transport) Open(conn io.ReadWriteCloser) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return errors.New("transport already open")
	}
	prev := t.readerDone
	t.mu.Unlock()

	if prev != nil {
		<-prev
	}

	t.mu.Lock()
	// Another Open may have won the race while we waited for the old
	// reader to drain.
	if t.running {
		t.mu.Unlock()
		return errors.New("transport already open")
	}
	t.conn = conn
	t.running = true
	t.readerDone = make(chan struct{})
	t.lostOnce = new(sync.Once)
	t.events = make(chan TransportEvent, eventBuffer)
	done := t.readerDone
	lost := t.lostOnce
	events := t.events
	t.mu.Unlock()

	go t.readLoop(conn, done, lost, events)
	return nil
}

// WriteLine sends one already-terminated command line.
func (t *Transport) WriteLine(line string) error {
	t.mu.Lock()
	conn := t.conn
	running := t.running
	t.mu.Unlock()

	if !running || conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write([]byte(line))
	return err
}

// Close tears the connection down and waits for the read loop to exit. It
// is idempotent and does not emit ConnectionLost: the loop distinguishes a
// deliberate close from a failure by re-checking the running flag.
func (t *Transport) Close() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	conn := t.conn
	t.conn = nil
	done := t.readerDone
	t.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	if done != nil {
		<-done
	}
	return err
}

// teardown clears the connection without waiting for the read loop. Only
// the read loop itself calls this; Close would deadlock here, since it
// waits for the loop to exit.
func (t *Transport) teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

func (t *Transport) readLoop(conn io.ReadWriteCloser, done chan struct{}, lost *sync.Once, events chan TransportEvent) {
	defer close(done)
	defer close(events)

	var framer winder.Framer
	buf := make([]byte, 256)

	for {
		if !t.Connected() {
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range framer.Push(buf[:n]) {
				t.emit(events, LineReceived{Line: line})
			}
		}
		if err != nil {
			// A read error after Close is the close itself, not a
			// device failure.
			if t.Connected() {
				lost.Do(func() {
					t.log.Warnw("connection lost", "error", err)
					t.emit(events, ConnectionLost{Err: err})
				})
				t.teardown()
			}
			return
		}
		// n == 0 with a nil error is a read timeout; loop around and
		// re-check the running flag.
	}
}

func (t *Transport) emit(events chan TransportEvent, ev TransportEvent) {
	select {
	case events <- ev:
	default:
		t.log.Warnw("event channel full, dropping", "event", ev)
	}
}
