// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry manages the full fleet: one session and one
// command tracker per configured printer, kept in configuration
// order.
//
// The registry is the single surface callers touch. Views returns an
// ordered, deep-copied picture of every device; Dispatch routes an
// action through the device's guards; Apply reconciles the running
// set against a new device list, starting and stopping sessions as
// needed. Change signals arrive on Events and command resolutions on
// Notifications, both buffered so a slow consumer never stalls a
// session.
package registry
