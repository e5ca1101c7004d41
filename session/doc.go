// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package session maintains one live MQTT connection per printer.
//
// A Session owns the connection lifecycle: connect with the device's
// LAN credentials, subscribe to its report topic, request a full
// state push, and feed every inbound report through decode and merge
// into the device snapshot. On connection loss it backs off
// exponentially and reconnects forever; a rejected access code is
// surfaced in the connection state but retried all the same, since
// the user may fix the code on the printer side.
//
// All merging happens on the session's run goroutine. Readers get
// deep copies via Snapshot, so no snapshot memory is ever shared
// across goroutines.
package session
