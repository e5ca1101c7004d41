// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bambumon/bambumon/config"
	"github.com/bambumon/bambumon/lib/clock"
	"github.com/bambumon/bambumon/printer"
)

const (
	backoffBase = time.Second
	backoffMax  = 60 * time.Second

	// inboundBuffer absorbs report bursts without blocking the MQTT
	// receive goroutine. Overflow drops the report; the next periodic
	// push restores any lost fields.
	inboundBuffer = 64
)

// Callbacks are invoked from the session's run goroutine. They must
// not block; slow consumers should hand off to their own channels.
type Callbacks struct {
	// OnUpdate fires after a report has been merged into the snapshot.
	OnUpdate func(serial string)

	// OnEcho fires for every command acknowledgment on the report
	// topic.
	OnEcho func(serial string, echo printer.CommandEcho)

	// OnState fires on every connection state transition.
	OnState func(serial string, state State)
}

// Options configures a session.
type Options struct {
	Device config.Device

	// Transport overrides the production MQTT transport. Nil selects
	// NewMQTTTransport(Device).
	Transport Transport

	Clock     clock.Clock
	Logger    *slog.Logger
	Callbacks Callbacks
}

// Session drives one printer connection. Create with New, run with
// Run, read with Snapshot and State.
type Session struct {
	device    config.Device
	transport Transport
	clock     clock.Clock
	logger    *slog.Logger
	callbacks Callbacks

	inbound   chan []byte
	dropped   atomic.Uint64
	connected atomic.Bool
	sequence  atomic.Uint64

	mu       sync.Mutex
	snapshot *printer.Snapshot
	state    State
}

// New builds a session for one device. It does not connect; call Run.
func New(options Options) *Session {
	transport := options.Transport
	if transport == nil {
		transport = NewMQTTTransport(options.Device)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Session{
		device:    options.Device,
		transport: transport,
		clock:     clk,
		logger:    logger.With("device", options.Device.Name, "serial", options.Device.Serial),
		callbacks: options.Callbacks,
		inbound:   make(chan []byte, inboundBuffer),
		snapshot:  printer.New(options.Device.Name, options.Device.Serial),
	}
}

// Snapshot returns a deep copy of the current device state.
func (s *Session) Snapshot() *printer.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextSequence returns a fresh command sequence ID. IDs are unique
// per session and echoed back by the device for correlation.
func (s *Session) NextSequence() string {
	return strconv.FormatUint(s.sequence.Add(1), 10)
}

// Publish sends one raw command payload to the device's request
// topic. Returns ErrNotConnected while the link is down.
func (s *Session) Publish(payload []byte) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	return s.transport.Publish(s.requestTopic(), payload)
}

// Run connects and serves until the context is canceled. Connection
// loss triggers reconnection with exponential backoff, forever; Run
// only returns the context's error.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.connected.Store(false)
		s.transport.Disconnect()
		s.setState(State{Phase: PhaseDisconnected})
	}()

	attempt := 0
	authRejected := false
	for {
		attempt++
		s.setState(State{Phase: PhaseConnecting, Attempt: attempt, AuthRejected: authRejected})

		err := s.transport.Connect(ctx)
		if err == nil {
			err = s.transport.Subscribe(s.reportTopic(), s.enqueue)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			var authError *AuthError
			authRejected = errors.As(err, &authError)
			if authRejected {
				s.logger.Error("printer rejected access code, will keep retrying", "error", err)
			} else {
				s.logger.Warn("connect failed", "attempt", attempt, "error", err)
			}
			s.transport.Disconnect()
			if err := s.waitRetry(ctx, attempt, authRejected); err != nil {
				return err
			}
			continue
		}

		attempt = 0
		authRejected = false
		s.connected.Store(true)
		s.logger.Info("connected")
		s.announce()
		s.setState(State{Phase: PhaseConnected})

		lostErr := s.pump(ctx)
		s.connected.Store(false)
		s.transport.Disconnect()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("connection lost", "error", lostErr)
	}
}

// pump serves the live connection until it drops or the context ends.
func (s *Session) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.transport.Lost():
			return err
		case payload := <-s.inbound:
			s.handleReport(payload)
		}
	}
}

// enqueue runs on the transport's receive goroutine and must never
// block it.
func (s *Session) enqueue(payload []byte) {
	select {
	case s.inbound <- payload:
	default:
		if s.dropped.Add(1)%100 == 1 {
			s.logger.Warn("inbound report buffer full, dropping",
				"dropped_total", s.dropped.Load())
		}
	}
}

func (s *Session) handleReport(payload []byte) {
	report, err := printer.ParseReport(payload)
	if err != nil {
		s.logger.Warn("undecodable report", "error", err)
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.snapshot.Merge(report, now, s.logger)
	s.snapshot.UpdatedAt = now
	s.mu.Unlock()

	if callback := s.callbacks.OnUpdate; callback != nil {
		callback(s.device.Serial)
	}
	if echo := report.CommandEcho(); echo != nil {
		s.logger.Debug("command echo",
			"command", echo.Command,
			"sequence_id", echo.SequenceID,
			"result", echo.Result,
		)
		if callback := s.callbacks.OnEcho; callback != nil {
			callback(s.device.Serial, *echo)
		}
	}
}

// announce asks a fresh connection for everything: a full state push
// and the module version list. Failures are logged and left to the
// periodic pushes to repair.
func (s *Session) announce() {
	for _, request := range []struct {
		section string
		command string
	}{
		{"pushing", "pushall"},
		{"info", "get_version"},
	} {
		payload, err := json.Marshal(map[string]map[string]string{
			request.section: {
				"sequence_id": s.NextSequence(),
				"command":     request.command,
			},
		})
		if err != nil {
			continue
		}
		if err := s.transport.Publish(s.requestTopic(), payload); err != nil {
			s.logger.Warn("announce failed", "command", request.command, "error", err)
		}
	}
}

func (s *Session) waitRetry(ctx context.Context, attempt int, authRejected bool) error {
	delay := backoffDelay(attempt)
	s.setState(State{
		Phase:        PhaseReconnecting,
		Attempt:      attempt,
		NextRetryAt:  s.clock.Now().Add(delay),
		AuthRejected: authRejected,
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(delay):
		return nil
	}
}

// backoffDelay doubles from one second per failed attempt, capped at
// a minute.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 7 {
		return backoffMax
	}
	delay := backoffBase << (attempt - 1)
	if delay > backoffMax {
		return backoffMax
	}
	return delay
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if callback := s.callbacks.OnState; callback != nil {
		callback(s.device.Serial, state)
	}
}

func (s *Session) reportTopic() string {
	return "device/" + s.device.Serial + "/report"
}

func (s *Session) requestTopic() string {
	return "device/" + s.device.Serial + "/request"
}
