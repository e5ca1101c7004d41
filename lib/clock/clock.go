// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so timer-heavy
// code (reconnect backoff, command timeouts, confirmation windows) can
// be tested deterministically.
//
// Production code accepts a Clock instead of calling the time package
// directly. Real() delegates to the standard library; Fake() stands
// still until the test calls Advance.
//
// Tests synchronize with goroutines under test through WaitForTimers:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	// ... start the code under test ...
//	fake.WaitForTimers(1)            // backoff wait is registered
//	fake.Advance(30 * time.Second)   // fire it deterministically
package clock

import "time"

// Clock is the time surface used by this repository: current time,
// one-shot waits, scheduled callbacks, and periodic ticks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once duration d has
	// elapsed. A non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run after duration d. The returned
	// Timer can cancel the pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering on C every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer is a scheduled one-shot event created by AfterFunc.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. Returns false when the timer already
// fired or was stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. C is buffered with capacity 1;
// ticks a slow consumer misses are dropped, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stop: timer.Stop}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
