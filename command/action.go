// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"

	"github.com/bambumon/bambumon/printer"
)

// Kind enumerates the supported control actions.
type Kind int

const (
	KindPause Kind = iota
	KindResume
	KindCancel
	KindSetSpeed
	KindChamberLight
	KindWorkLight
)

// Destructive reports whether the action interrupts or ends a running
// job. Destructive actions require a confirming second dispatch.
func (k Kind) Destructive() bool {
	switch k {
	case KindPause, KindResume, KindCancel:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindPause:
		return "pause"
	case KindResume:
		return "resume"
	case KindCancel:
		return "cancel"
	case KindSetSpeed:
		return "set speed"
	case KindChamberLight:
		return "chamber light"
	case KindWorkLight:
		return "work light"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is one control action with its parameters. Actions are
// comparable; confirmation matching uses plain equality.
type Action struct {
	Kind Kind

	// Speed is the target profile for KindSetSpeed.
	Speed printer.SpeedProfile

	// LightOn is the target state for the light actions.
	LightOn bool
}

func (a Action) String() string {
	switch a.Kind {
	case KindSetSpeed:
		return "set speed " + a.Speed.String()
	case KindChamberLight:
		if a.LightOn {
			return "chamber light on"
		}
		return "chamber light off"
	case KindWorkLight:
		if a.LightOn {
			return "work light on"
		}
		return "work light off"
	default:
		return a.Kind.String()
	}
}

// Pause pauses the running job.
func Pause() Action { return Action{Kind: KindPause} }

// Resume resumes a paused job.
func Resume() Action { return Action{Kind: KindResume} }

// Cancel stops the job entirely.
func Cancel() Action { return Action{Kind: KindCancel} }

// SetSpeed selects a speed profile.
func SetSpeed(profile printer.SpeedProfile) Action {
	return Action{Kind: KindSetSpeed, Speed: profile}
}

// ChamberLight switches the chamber light.
func ChamberLight(on bool) Action {
	return Action{Kind: KindChamberLight, LightOn: on}
}

// WorkLight switches the toolhead work light.
func WorkLight(on bool) Action {
	return Action{Kind: KindWorkLight, LightOn: on}
}
