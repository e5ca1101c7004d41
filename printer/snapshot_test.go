// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"reflect"
	"testing"
)

func TestNewSnapshot(t *testing.T) {
	s := New("Workshop", "01P00A123456789")
	if s.Model != "Bambu Lab P1S" {
		t.Fatalf("model = %q", s.Model)
	}
	if s.SerialSuffix != "6789" {
		t.Fatalf("serial suffix = %q", s.SerialSuffix)
	}
	if s.Thermal.Nozzle != nil || s.Job.Progress != nil || s.AMS != nil {
		t.Fatalf("fresh snapshot reports data it never received")
	}
	if s.Phase() != PhaseUnknown {
		t.Fatalf("fresh snapshot phase = %v, want Unknown", s.Phase())
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := New("X", "00M00A000000000")
	mergeJSON(t, s, `{"print":{
		"nozzle_temper":200.0,"mc_percent":10,"gcode_state":"RUNNING",
		"spd_lvl":2,"cooling_fan_speed":"8",
		"hms":[{"attr":117440512,"code":117440513}],
		"ams":{"tray_now":"0","ams":[{"id":"0","humidity":"1","tray":[
			{"id":"0","tray_type":"PLA","remain":50},{"id":"1"},{"id":"2"},{"id":"3"}
		]}]}
	}}`)

	clone := s.Clone()
	if !reflect.DeepEqual(s, clone) {
		t.Fatalf("clone differs from original")
	}

	// Mutating the original must not leak into the clone.
	*s.Thermal.Nozzle = 999
	*s.Job.Progress = 99
	*s.AMS.Units[0].Trays[0].RemainingPercent = 1
	s.Alerts[0].Message = "mutated"

	if *clone.Thermal.Nozzle != 200.0 {
		t.Fatalf("clone nozzle mutated: %v", *clone.Thermal.Nozzle)
	}
	if *clone.Job.Progress != 10 {
		t.Fatalf("clone progress mutated: %v", *clone.Job.Progress)
	}
	if *clone.AMS.Units[0].Trays[0].RemainingPercent != 50 {
		t.Fatalf("clone tray mutated")
	}
	if clone.Alerts[0].Message == "mutated" {
		t.Fatalf("clone alerts share backing array")
	}
}

func TestPhase(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Phase
	}{
		{"finish wins over everything", `{"print":{"gcode_state":"FINISH","stg_cur":1}}`, PhaseFinished},
		{"failed is an error", `{"print":{"gcode_state":"FAILED"}}`, PhaseError},
		{"idle when not active", `{"print":{"gcode_state":"IDLE"}}`, PhaseIdle},
		{"leveling stage", `{"print":{"gcode_state":"RUNNING","stg_cur":1}}`, PhaseLeveling},
		{"bed preheat stage", `{"print":{"gcode_state":"RUNNING","stg_cur":2}}`, PhaseHeatingBed},
		{"hotend heating stage", `{"print":{"gcode_state":"RUNNING","stg_cur":7}}`, PhaseHeatingNozzle},
		{"filament runout pauses", `{"print":{"gcode_state":"RUNNING","stg_cur":6}}`, PhasePaused},
		{"nozzle malfunction stage", `{"print":{"gcode_state":"RUNNING","stg_cur":20}}`, PhaseError},
		{"pause state", `{"print":{"gcode_state":"PAUSE"}}`, PhasePaused},
		{
			"bed heating inferred from temperatures",
			`{"print":{"gcode_state":"RUNNING","bed_temper":30.0,"bed_target_temper":60.0}}`,
			PhaseHeatingBed,
		},
		{
			"nozzle heating inferred after bed is hot",
			`{"print":{"gcode_state":"RUNNING","bed_temper":60.0,"bed_target_temper":60.0,
				"nozzle_temper":100.0,"nozzle_target_temper":220.0}}`,
			PhaseHeatingNozzle,
		},
		{
			"within threshold counts as printing",
			`{"print":{"gcode_state":"RUNNING","nozzle_temper":216.0,"nozzle_target_temper":220.0}}`,
			PhasePrinting,
		},
		{"plain running prints", `{"print":{"gcode_state":"RUNNING","mc_percent":50}}`, PhasePrinting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("X", "00M00A000000000")
			mergeJSON(t, s, tt.payload)
			if got := s.Phase(); got != tt.want {
				t.Fatalf("phase = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelFromSerial(t *testing.T) {
	tests := []struct {
		serial string
		want   string
	}{
		{"01P00A123456789", "Bambu Lab P1S"},
		{"01S00A123456789", "Bambu Lab P1P"},
		{"00M00A123456789", "Bambu Lab X1C"},
		{"03W00A123456789", "Bambu Lab X1E"},
		{"030ABC123456789", "Bambu Lab A1 Mini"},
		{"039ABC123456789", "Bambu Lab A1"},
		{"094ABC123456789", "Bambu Lab H2D"},
		{"ZZZ00A123456789", "Bambu Printer"},
		{"0", "Bambu Printer"},
	}
	for _, tt := range tests {
		if got := ModelFromSerial(tt.serial); got != tt.want {
			t.Fatalf("ModelFromSerial(%q) = %q, want %q", tt.serial, got, tt.want)
		}
	}
}

func TestHasChamberSensor(t *testing.T) {
	if !New("X", "00M00A000000000").HasChamberSensor() {
		t.Fatalf("X1C should have a chamber sensor")
	}
	if New("X", "01P00A000000000").HasChamberSensor() {
		t.Fatalf("P1S should not have a chamber sensor")
	}
}

func TestSpeedProfile(t *testing.T) {
	if SpeedSilent.Percent() != 50 || SpeedStandard.Percent() != 100 ||
		SpeedSport.Percent() != 124 || SpeedLudicrous.Percent() != 166 {
		t.Fatalf("profile percentages wrong")
	}
	if SpeedLudicrous.Faster() != SpeedLudicrous {
		t.Fatalf("Faster did not clamp at Ludicrous")
	}
	if SpeedSilent.Slower() != SpeedSilent {
		t.Fatalf("Slower did not clamp at Silent")
	}
	if SpeedStandard.Faster() != SpeedSport || SpeedSport.Slower() != SpeedStandard {
		t.Fatalf("profile stepping wrong")
	}
	if SpeedProfile(0).Faster() != SpeedStandard {
		t.Fatalf("invalid profile should step to Standard")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			"subtask wins over gcode file",
			`{"print":{"subtask_name":"Benchy","gcode_file":"other.gcode.3mf"}}`,
			"Benchy",
		},
		{
			"extensions stripped",
			`{"print":{"gcode_file":"phone-stand.gcode.3mf"}}`,
			"phone-stand",
		},
		{
			"slicer profile falls through to gcode name",
			`{"print":{"subtask_name":"0.2mm layer, 2 walls, 15% infill","gcode_file":"bracket.3mf"}}`,
			"bracket",
		},
		{
			"cloud profile gets a prefix",
			`{"print":{"subtask_name":"0.2mm layer, 15% infill","print_type":"cloud"}}`,
			"Cloud: 0.2mm layer, 15% infill",
		},
		{
			"local profile stays bare",
			`{"print":{"subtask_name":"0.2mm layer, 15% infill","print_type":"local"}}`,
			"0.2mm layer, 15% infill",
		},
		{"nothing reported", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("X", "00M00A000000000")
			mergeJSON(t, s, tt.payload)
			if got := s.DisplayName(); got != tt.want {
				t.Fatalf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHumidityGrade(t *testing.T) {
	grades := map[int]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "E", 0: "", 9: ""}
	for idx, want := range grades {
		u := AMSUnit{Humidity: ptr(idx)}
		if got := u.HumidityGrade(); got != want {
			t.Fatalf("grade(%d) = %q, want %q", idx, got, want)
		}
	}
	if got := (AMSUnit{}).HumidityGrade(); got != "" {
		t.Fatalf("grade(nil) = %q, want empty", got)
	}
}
