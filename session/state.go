// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// Phase is the connection lifecycle phase.
type Phase int

const (
	// PhaseDisconnected means the session is not running.
	PhaseDisconnected Phase = iota
	// PhaseConnecting means a connect attempt is in flight.
	PhaseConnecting
	// PhaseConnected means the report subscription is live.
	PhaseConnected
	// PhaseReconnecting means the session is backing off before the
	// next attempt.
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "Connecting"
	case PhaseConnected:
		return "Connected"
	case PhaseReconnecting:
		return "Reconnecting"
	default:
		return "Disconnected"
	}
}

// State describes the connection at a point in time.
type State struct {
	Phase Phase

	// Attempt counts consecutive failed connect attempts. Zero while
	// connected.
	Attempt int

	// NextRetryAt is when the next attempt fires. Set only in
	// PhaseReconnecting.
	NextRetryAt time.Time

	// AuthRejected marks that the most recent failure was the printer
	// refusing the access code, as opposed to a network problem. The
	// session keeps retrying either way; this drives user-facing
	// display only.
	AuthRejected bool
}
