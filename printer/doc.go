// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package printer models the state of one Bambu Lab printer and the
// merge engine that folds the device's partial MQTT status reports
// into it.
//
// [Snapshot] is the canonical per-device record. Printers report
// incrementally: each MQTT message carries only the fields that
// changed, so every leaf in the snapshot is a pointer whose nil value
// means "never reported". [Snapshot.Merge] overwrites exactly the
// fields present in a report and leaves everything else untouched,
// which makes the merge idempotent under replay and order-insensitive
// for reports touching disjoint fields. Implausible values (negative
// percentages, temperatures below absolute zero) are rejected per
// field without aborting the rest of the report.
//
// [ParseReport] decodes the device's loosely-typed JSON. Firmware
// sends booleans as bools, integers, or strings depending on model
// and version, and some numbers arrive as strings; the wire types
// accept all of it and ignore unknown fields. A report may also carry
// the echo of a previously published command ([Report.CommandEcho]),
// which the session layer forwards to the command channel for
// acknowledgment matching.
//
// Alerts are the device's HMS (Health Management System) entries.
// They merge by code: a recurring code refreshes its timestamp
// instead of duplicating, and the list stays ordered most-recent
// first. An explicitly empty HMS list clears all alerts; an absent
// one changes nothing.
package printer
