// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package command dispatches control actions to a printer and tracks
// their acknowledgment.
//
// Dispatch is guarded twice. A lock, engaged by default, rejects
// every action until deliberately released. Destructive actions
// (pause, resume, cancel) additionally require a second matching
// dispatch within a confirmation window before anything is sent; a
// different destructive action inside the window re-arms the window
// for the new action instead of confirming the old one.
//
// Every sent command carries a sequence ID the device echoes back.
// The tracker resolves each in-flight command exactly once: from the
// echo as acknowledged or rejected, or from a timer as timed out.
package command
