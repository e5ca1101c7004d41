// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire envelopes for the device's request topic. Print-class commands
// ride in a "print" object, the chamber light in a "system" ledctrl.

type printEnvelope struct {
	Print printBody `json:"print"`
}

type printBody struct {
	SequenceID string `json:"sequence_id"`
	Command    string `json:"command"`
	Param      string `json:"param,omitempty"`
}

type systemEnvelope struct {
	System systemBody `json:"system"`
}

type systemBody struct {
	SequenceID   string `json:"sequence_id"`
	Command      string `json:"command"`
	LedNode      string `json:"led_node"`
	LedMode      string `json:"led_mode"`
	LedOnTime    int    `json:"led_on_time"`
	LedOffTime   int    `json:"led_off_time"`
	LoopTimes    int    `json:"loop_times"`
	IntervalTime int    `json:"interval_time"`
}

// payload renders the action as a request-topic message carrying the
// given sequence ID.
func (a Action) payload(sequenceID string) ([]byte, error) {
	switch a.Kind {
	case KindPause:
		return marshalPrint(sequenceID, "pause", "")
	case KindResume:
		return marshalPrint(sequenceID, "resume", "")
	case KindCancel:
		// The wire command for cancel is "stop".
		return marshalPrint(sequenceID, "stop", "")
	case KindSetSpeed:
		if !a.Speed.Valid() {
			return nil, fmt.Errorf("invalid speed profile %d", a.Speed)
		}
		return marshalPrint(sequenceID, "print_speed", strconv.Itoa(int(a.Speed)))
	case KindChamberLight:
		return marshalLedctrl(sequenceID, "chamber_light", a.LightOn)
	case KindWorkLight:
		return marshalLedctrl(sequenceID, "work_light", a.LightOn)
	default:
		return nil, fmt.Errorf("unknown action kind %d", a.Kind)
	}
}

func marshalPrint(sequenceID, command, param string) ([]byte, error) {
	return json.Marshal(printEnvelope{Print: printBody{
		SequenceID: sequenceID,
		Command:    command,
		Param:      param,
	}})
}

func marshalLedctrl(sequenceID, node string, on bool) ([]byte, error) {
	mode := "off"
	if on {
		mode = "on"
	}
	return json.Marshal(systemEnvelope{System: systemBody{
		SequenceID: sequenceID,
		Command:    "ledctrl",
		LedNode:    node,
		LedMode:    mode,
		// The device requires the flash parameters even for plain
		// on/off.
		LedOnTime:  500,
		LedOffTime: 500,
	}})
}
