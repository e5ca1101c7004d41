// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bambumon/bambumon/lib/clock"
	"github.com/bambumon/bambumon/printer"
	"github.com/bambumon/bambumon/session"
)

const (
	// ConfirmWindow is how long an armed destructive action waits for
	// its confirming dispatch.
	ConfirmWindow = 5 * time.Second

	// ResponseTimeout bounds how long a sent command waits for its
	// echo before resolving as timed out.
	ResponseTimeout = 10 * time.Second

	notificationBuffer = 8
)

// Publisher is the outbound half a tracker needs from a session.
type Publisher interface {
	NextSequence() string
	Publish(payload []byte) error
}

// Result classifies a dispatch attempt.
type Result int

const (
	// ResultSent means the command went out and is awaiting its echo.
	ResultSent Result = iota
	// ResultAwaitingConfirmation means a destructive action is armed
	// and needs a matching second dispatch.
	ResultAwaitingConfirmation
	// ResultRejectedLocked means the control lock blocked the action.
	ResultRejectedLocked
	// ResultRejectedDisconnected means there is no live connection.
	ResultRejectedDisconnected
)

func (r Result) String() string {
	switch r {
	case ResultSent:
		return "sent"
	case ResultAwaitingConfirmation:
		return "awaiting confirmation"
	case ResultRejectedLocked:
		return "rejected: locked"
	case ResultRejectedDisconnected:
		return "rejected: disconnected"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Outcome is the final fate of a sent command.
type Outcome int

const (
	// OutcomeAcknowledged means the device echoed success.
	OutcomeAcknowledged Outcome = iota
	// OutcomeRejected means the device echoed failure.
	OutcomeRejected
	// OutcomeTimedOut means no echo arrived within ResponseTimeout.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAcknowledged:
		return "acknowledged"
	case OutcomeRejected:
		return "rejected"
	default:
		return "timed out"
	}
}

// Notification reports the resolution of one sent command. Exactly
// one notification is produced per command.
type Notification struct {
	Serial     string
	Action     Action
	SequenceID string
	Outcome    Outcome

	// Reason is the device's failure explanation, when it gave one.
	Reason string

	EmittedAt time.Time
}

// Message renders the notification as a display line.
func (n Notification) Message() string {
	message := n.Action.String() + " " + n.Outcome.String()
	if n.Reason != "" {
		message += ": " + n.Reason
	}
	return message
}

type pendingConfirmation struct {
	action Action
	timer  *clock.Timer
}

type inflightRequest struct {
	action Action
	timer  *clock.Timer
}

// Tracker guards and tracks command dispatch for one printer. Safe
// for concurrent use.
type Tracker struct {
	serial        string
	publisher     Publisher
	clock         clock.Clock
	logger        *slog.Logger
	notifications chan Notification

	mu       sync.Mutex
	locked   bool
	pending  *pendingConfirmation
	inflight map[string]*inflightRequest
}

// NewTracker builds a tracker for one device. The control lock starts
// engaged: a fresh device accepts no commands until the user unlocks
// it.
func NewTracker(serial string, publisher Publisher, clk clock.Clock, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		serial:        serial,
		publisher:     publisher,
		clock:         clk,
		logger:        logger.With("serial", serial),
		notifications: make(chan Notification, notificationBuffer),
		locked:        true,
		inflight:      make(map[string]*inflightRequest),
	}
}

// Notifications delivers command resolutions. The channel is buffered
// and drops the oldest entry on overflow, so a stalled reader costs
// history, never progress.
func (t *Tracker) Notifications() <-chan Notification {
	return t.notifications
}

// Locked reports the control lock state.
func (t *Tracker) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked
}

// SetLocked engages or releases the control lock. Engaging clears any
// armed confirmation.
func (t *Tracker) SetLocked(locked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locked = locked
	if locked {
		t.disarmLocked()
	}
}

// Pending returns the armed destructive action, if any.
func (t *Tracker) Pending() (Action, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return Action{}, false
	}
	return t.pending.action, true
}

// Dispatch runs an action through the guards and, when they pass,
// sends it. On a non-nil error nothing was sent and the Result is
// meaningless.
func (t *Tracker) Dispatch(action Action) (Result, error) {
	t.mu.Lock()
	if t.locked {
		t.mu.Unlock()
		return ResultRejectedLocked, nil
	}
	if action.Kind.Destructive() {
		if t.pending == nil || t.pending.action != action {
			// First dispatch, or a different destructive action inside
			// the window: (re-)arm for this action.
			t.armLocked(action)
			t.mu.Unlock()
			return ResultAwaitingConfirmation, nil
		}
		t.disarmLocked()
	} else {
		// A non-destructive action abandons any armed confirmation.
		t.disarmLocked()
	}
	t.mu.Unlock()

	return t.send(action)
}

func (t *Tracker) send(action Action) (Result, error) {
	sequenceID := t.publisher.NextSequence()
	payload, err := action.payload(sequenceID)
	if err != nil {
		return 0, err
	}
	if err := t.publisher.Publish(payload); err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			return ResultRejectedDisconnected, nil
		}
		return 0, fmt.Errorf("publishing %s: %w", action, err)
	}

	timer := t.clock.AfterFunc(ResponseTimeout, func() { t.expire(sequenceID) })
	t.mu.Lock()
	t.inflight[sequenceID] = &inflightRequest{action: action, timer: timer}
	t.mu.Unlock()

	t.logger.Info("command sent", "action", action.String(), "sequence_id", sequenceID)
	return ResultSent, nil
}

// Resolve matches a device echo against an in-flight command. Echoes
// for unknown sequence IDs (announce traffic, another client's
// commands) are ignored.
func (t *Tracker) Resolve(echo printer.CommandEcho) {
	t.mu.Lock()
	request, ok := t.inflight[echo.SequenceID]
	if ok {
		delete(t.inflight, echo.SequenceID)
		request.timer.Stop()
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	outcome := OutcomeAcknowledged
	if echo.Result != "success" {
		outcome = OutcomeRejected
		t.logger.Warn("command rejected by device",
			"action", request.action.String(),
			"sequence_id", echo.SequenceID,
			"reason", echo.Reason,
		)
	}
	t.push(Notification{
		Serial:     t.serial,
		Action:     request.action,
		SequenceID: echo.SequenceID,
		Outcome:    outcome,
		Reason:     echo.Reason,
		EmittedAt:  t.clock.Now(),
	})
}

// Close stops all timers and resolves any in-flight command as
// rejected, so nothing is left pending forever.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.disarmLocked()
	canceled := make(map[string]*inflightRequest, len(t.inflight))
	for sequenceID, request := range t.inflight {
		request.timer.Stop()
		canceled[sequenceID] = request
		delete(t.inflight, sequenceID)
	}
	t.mu.Unlock()

	for sequenceID, request := range canceled {
		t.push(Notification{
			Serial:     t.serial,
			Action:     request.action,
			SequenceID: sequenceID,
			Outcome:    OutcomeRejected,
			Reason:     "canceled",
			EmittedAt:  t.clock.Now(),
		})
	}
}

func (t *Tracker) expire(sequenceID string) {
	t.mu.Lock()
	request, ok := t.inflight[sequenceID]
	if ok {
		delete(t.inflight, sequenceID)
	}
	t.mu.Unlock()
	if !ok {
		// Already resolved by its echo.
		return
	}

	t.logger.Warn("command timed out",
		"action", request.action.String(),
		"sequence_id", sequenceID,
	)
	t.push(Notification{
		Serial:     t.serial,
		Action:     request.action,
		SequenceID: sequenceID,
		Outcome:    OutcomeTimedOut,
		EmittedAt:  t.clock.Now(),
	})
}

// armLocked arms the confirmation window for action. Caller holds mu.
func (t *Tracker) armLocked(action Action) {
	t.disarmLocked()
	t.pending = &pendingConfirmation{
		action: action,
		timer: t.clock.AfterFunc(ConfirmWindow, func() {
			t.mu.Lock()
			if t.pending != nil && t.pending.action == action {
				t.pending = nil
			}
			t.mu.Unlock()
		}),
	}
}

// disarmLocked clears the armed confirmation. Caller holds mu.
func (t *Tracker) disarmLocked() {
	if t.pending != nil {
		t.pending.timer.Stop()
		t.pending = nil
	}
}

func (t *Tracker) push(notification Notification) {
	for {
		select {
		case t.notifications <- notification:
			return
		default:
			select {
			case <-t.notifications:
			default:
			}
		}
	}
}
