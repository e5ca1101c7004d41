// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Report is one decoded inbound payload from a printer's report
// topic. Every field at every level is optional: the device sends
// only what changed, and different firmware generations disagree on
// types (bools as strings, numbers as strings), so the wire types
// absorb all of it. Unknown fields are ignored.
type Report struct {
	Print  *PrintReport  `json:"print"`
	System *SystemReport `json:"system"`
	Info   *InfoReport   `json:"info"`
}

// ParseReport decodes a raw report payload. A payload that is not a
// JSON object is a protocol error; a valid object with no recognized
// sections decodes to an empty Report and merges as a no-op.
func ParseReport(payload []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decoding report payload: %w", err)
	}
	return &report, nil
}

// PrintReport is the print section: the bulk of telemetry, and the
// echo of print-class commands (pause, resume, stop, print_speed).
type PrintReport struct {
	// Job
	GcodeFile     *string `json:"gcode_file"`
	SubtaskName   *string `json:"subtask_name"`
	Progress      *int    `json:"mc_percent"`
	LayerNum      *int    `json:"layer_num"`
	TotalLayerNum *int    `json:"total_layer_num"`
	RemainingTime *int    `json:"mc_remaining_time"`
	GcodeState    *string `json:"gcode_state"`
	PrintType     *string `json:"print_type"`
	StageCode     *int    `json:"stg_cur"`
	// gcode_start_time arrives as a number or a string.
	GcodeStartTime *looseString `json:"gcode_start_time"`

	// Temperatures
	NozzleTemper       *float64 `json:"nozzle_temper"`
	NozzleTargetTemper *float64 `json:"nozzle_target_temper"`
	BedTemper          *float64 `json:"bed_temper"`
	BedTargetTemper    *float64 `json:"bed_target_temper"`
	ChamberTemper      *float64 `json:"chamber_temper"`

	// Speed and fans. Fan speeds are strings on the device's 0-15
	// scale; heatbreak_fan_speed sometimes arrives as a number.
	SpeedLevel        *int         `json:"spd_lvl"`
	CoolingFanSpeed   *string      `json:"cooling_fan_speed"`
	BigFan1Speed      *string      `json:"big_fan1_speed"`
	BigFan2Speed      *string      `json:"big_fan2_speed"`
	HeatbreakFanSpeed *looseString `json:"heatbreak_fan_speed"`

	// Lights and AMS
	LightsReport []lightReport `json:"lights_report"`
	AMS          *amsReport    `json:"ams"`

	// Meta
	WifiSignal     *string      `json:"wifi_signal"`
	MachineName    *string      `json:"machine_name"`
	HardwareVer    *string      `json:"hw_ver"`
	SoftwareVer    *string      `json:"sw_ver"`
	NozzleDiameter *string      `json:"nozzle_diameter"`
	Xcam           *xcamReport  `json:"xcam"`
	Ipcam          *ipcamReport `json:"ipcam"`

	// HMS. The pointer distinguishes "absent" (keep current alerts)
	// from "present but empty" (device reports no active errors).
	HMS *[]hmsReport `json:"hms"`

	// Command echo. push_status carries these too, so echo detection
	// requires a result field, not just a command name.
	Command    *string      `json:"command"`
	SequenceID *looseString `json:"sequence_id"`
	Result     *string      `json:"result"`
	Reason     *string      `json:"reason"`
}

// SystemReport is the system section, seen only as the echo of
// system-class commands (ledctrl).
type SystemReport struct {
	Command    *string      `json:"command"`
	SequenceID *looseString `json:"sequence_id"`
	Result     *string      `json:"result"`
	Reason     *string      `json:"reason"`
	LedNode    *string      `json:"led_node"`
	LedMode    *string      `json:"led_mode"`
}

// InfoReport is the info section: the get_version response listing
// hardware modules and their firmware versions.
type InfoReport struct {
	Module []infoModule `json:"module"`
}

type infoModule struct {
	Name        *string `json:"name"`
	SoftwareVer *string `json:"sw_ver"`
	HardwareVer *string `json:"hw_ver"`
}

type lightReport struct {
	Node string `json:"node"`
	Mode string `json:"mode"`
}

type amsReport struct {
	// Units uses a slice pointer: a present list is authoritative for
	// structure (fewer units than before drops the stale ones), an
	// absent one leaves structure alone.
	Units   *[]amsUnitReport `json:"ams"`
	TrayNow *looseString     `json:"tray_now"`

	ExistBits        *string `json:"ams_exist_bits"`
	TrayExistBits    *string `json:"tray_exist_bits"`
	TrayBBLBits      *string `json:"tray_is_bbl_bits"`
	TrayReadDoneBits *string `json:"tray_read_done_bits"`
	TrayReadingBits  *string `json:"tray_reading_bits"`
}

type amsUnitReport struct {
	ID       looseString      `json:"id"`
	Humidity *looseString     `json:"humidity"`
	Trays    *[]amsTrayReport `json:"tray"`
}

type amsTrayReport struct {
	ID            looseString  `json:"id"`
	TrayType      *string      `json:"tray_type"`
	TrayColor     *string      `json:"tray_color"`
	Remain        *int         `json:"remain"`
	TraySubBrands *string      `json:"tray_sub_brands"`
	NozzleTempMin *looseString `json:"nozzle_temp_min"`
	NozzleTempMax *looseString `json:"nozzle_temp_max"`
}

type hmsReport struct {
	Attr uint32 `json:"attr"`
	Code uint32 `json:"code"`
}

type xcamReport struct {
	SpaghettiDetector   *looseBool `json:"spaghetti_detector"`
	FirstLayerInspector *looseBool `json:"first_layer_inspector"`
	PrintHalt           *looseBool `json:"print_halt"`
}

type ipcamReport struct {
	Record     *string `json:"ipcam_record"`
	Timelapse  *string `json:"timelapse"`
	Resolution *string `json:"resolution"`
}

// CommandEcho is the device's acknowledgment of a published command,
// carried on the report topic with the request's sequence ID.
type CommandEcho struct {
	// Section is "print", "system", or "info".
	Section    string
	Command    string
	SequenceID string
	// Result is "success" or "fail".
	Result string
	// Reason optionally explains a failure.
	Reason string
}

// CommandEcho extracts a command acknowledgment from the report, or
// nil when the report is plain telemetry. Periodic push_status
// messages carry a command name but no result; only messages with
// both a sequence ID and a result count as echoes.
func (r *Report) CommandEcho() *CommandEcho {
	if p := r.Print; p != nil && p.Command != nil && p.SequenceID != nil && p.Result != nil {
		return &CommandEcho{
			Section:    "print",
			Command:    *p.Command,
			SequenceID: string(*p.SequenceID),
			Result:     *p.Result,
			Reason:     deref(p.Reason),
		}
	}
	if sys := r.System; sys != nil && sys.Command != nil && sys.SequenceID != nil && sys.Result != nil {
		return &CommandEcho{
			Section:    "system",
			Command:    *sys.Command,
			SequenceID: string(*sys.SequenceID),
			Result:     *sys.Result,
			Reason:     deref(sys.Reason),
		}
	}
	return nil
}

// looseString accepts a JSON string or number and stores its text.
// Unparseable shapes decode to "" rather than failing the report.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	*s = looseString(n.String())
	return nil
}

// looseBool accepts a JSON bool, number, or string. "true"/"1"/
// "enable" are true, "false"/"0"/"disable" are false, anything else
// decodes as absent.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1", "enable":
		*b = true
	case "false", "0", "disable":
		*b = false
	}
	return nil
}

// parseFanSpeed converts the device's 0-15 fan scale to a percentage,
// rounding to match the vendor app's display. Values above 15 clamp.
func parseFanSpeed(raw string) (int, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, false
	}
	if v > 15 {
		v = 15
	}
	return int(float64(v)/15*100 + 0.5), true
}

// parseHexBits parses a hex bitmask string ("3C", "0x3C"). Invalid
// input reads as zero, which safely means "no bits set".
func parseHexBits(raw string) uint32 {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// parseHexColor parses a "#RRGGBB(AA)" filament color. The alpha
// suffix, when present, is ignored.
func parseHexColor(raw string) *RGB {
	hex := strings.TrimPrefix(raw, "#")
	if len(hex) < 6 {
		return nil
	}
	r, err1 := strconv.ParseUint(hex[0:2], 16, 8)
	g, err2 := strconv.ParseUint(hex[2:4], 16, 8)
	b, err3 := strconv.ParseUint(hex[4:6], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	return &RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
}
