// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "errors"

// ErrNotConnected is returned by Publish while the session has no
// live connection. Callers fail fast rather than queueing commands
// against a dead link.
var ErrNotConnected = errors.New("session: not connected")

// AuthError wraps a broker rejection of the device credentials. It
// distinguishes a wrong access code from ordinary network failures so
// the connection state can say so.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "access code rejected: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
