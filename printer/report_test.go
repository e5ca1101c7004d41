// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

import "testing"

func TestParseReport(t *testing.T) {
	t.Run("rejects non-JSON payloads", func(t *testing.T) {
		if _, err := ParseReport([]byte("not json")); err == nil {
			t.Fatalf("garbage payload parsed without error")
		}
	})

	t.Run("empty object is a valid no-op report", func(t *testing.T) {
		report, err := ParseReport([]byte(`{}`))
		if err != nil {
			t.Fatalf("ParseReport: %v", err)
		}
		if report.Print != nil || report.System != nil || report.Info != nil {
			t.Fatalf("empty object decoded sections: %+v", report)
		}
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		report, err := ParseReport([]byte(`{"print":{"future_field":true,"mc_percent":5}}`))
		if err != nil {
			t.Fatalf("ParseReport: %v", err)
		}
		if report.Print.Progress == nil || *report.Print.Progress != 5 {
			t.Fatalf("progress lost next to unknown field")
		}
	})
}

func TestCommandEcho(t *testing.T) {
	t.Run("push_status is not an echo", func(t *testing.T) {
		report := mustReport(t, `{"print":{"command":"push_status","mc_percent":50,"sequence_id":"2021"}}`)
		if echo := report.CommandEcho(); echo != nil {
			t.Fatalf("telemetry classified as echo: %+v", echo)
		}
	})

	t.Run("print echo carries section and result", func(t *testing.T) {
		report := mustReport(t, `{"print":{"command":"pause","sequence_id":"17","result":"success"}}`)
		echo := report.CommandEcho()
		if echo == nil {
			t.Fatalf("echo not detected")
		}
		if echo.Section != "print" || echo.Command != "pause" || echo.SequenceID != "17" || echo.Result != "success" {
			t.Fatalf("echo = %+v", echo)
		}
	})

	t.Run("numeric sequence id decodes", func(t *testing.T) {
		report := mustReport(t, `{"print":{"command":"stop","sequence_id":42,"result":"success"}}`)
		echo := report.CommandEcho()
		if echo == nil || echo.SequenceID != "42" {
			t.Fatalf("echo = %+v, want sequence 42", echo)
		}
	})

	t.Run("failure carries the reason", func(t *testing.T) {
		report := mustReport(t, `{"system":{"command":"ledctrl","sequence_id":"9","result":"fail","reason":"unsupported"}}`)
		echo := report.CommandEcho()
		if echo == nil {
			t.Fatalf("echo not detected")
		}
		if echo.Section != "system" || echo.Result != "fail" || echo.Reason != "unsupported" {
			t.Fatalf("echo = %+v", echo)
		}
	})
}

func TestLooseDecoding(t *testing.T) {
	t.Run("string and numeric humidity agree", func(t *testing.T) {
		a := mustReport(t, `{"print":{"ams":{"ams":[{"id":"0","humidity":"3"}]}}}`)
		b := mustReport(t, `{"print":{"ams":{"ams":[{"id":0,"humidity":3}]}}}`)
		ha := *(*a.Print.AMS.Units)[0].Humidity
		hb := *(*b.Print.AMS.Units)[0].Humidity
		if ha != "3" || hb != "3" {
			t.Fatalf("humidity = %q / %q, want both \"3\"", ha, hb)
		}
	})

	t.Run("loose bool variants", func(t *testing.T) {
		tests := []struct {
			raw  string
			want bool
		}{
			{`true`, true},
			{`"enable"`, true},
			{`1`, true},
			{`false`, false},
			{`"disable"`, false},
			{`0`, false},
		}
		for _, tt := range tests {
			report := mustReport(t, `{"print":{"xcam":{"print_halt":`+tt.raw+`}}}`)
			got := report.Print.Xcam.PrintHalt
			if got == nil || bool(*got) != tt.want {
				t.Fatalf("print_halt %s = %v, want %v", tt.raw, got, tt.want)
			}
		}
	})

	t.Run("unrecognized loose values do not fail the report", func(t *testing.T) {
		report := mustReport(t, `{"print":{"heatbreak_fan_speed":{"odd":"shape"},"mc_percent":7}}`)
		if report.Print.Progress == nil || *report.Print.Progress != 7 {
			t.Fatalf("sibling field lost to a malformed loose value")
		}
	})
}

func TestParseHexHelpers(t *testing.T) {
	if got := parseHexBits("3C"); got != 0x3C {
		t.Fatalf("parseHexBits(3C) = %#x", got)
	}
	if got := parseHexBits("0x10000"); got != 0x10000 {
		t.Fatalf("parseHexBits(0x10000) = %#x", got)
	}
	if got := parseHexBits("zz"); got != 0 {
		t.Fatalf("parseHexBits(zz) = %#x, want 0", got)
	}

	if c := parseHexColor("#FF8000"); c == nil || (*c != RGB{R: 255, G: 128, B: 0}) {
		t.Fatalf("parseHexColor(#FF8000) = %v", c)
	}
	if c := parseHexColor("FF8000AA"); c == nil || (*c != RGB{R: 255, G: 128, B: 0}) {
		t.Fatalf("alpha suffix should be ignored, got %v", c)
	}
	if c := parseHexColor("short"); c != nil {
		t.Fatalf("parseHexColor(short) = %v, want nil", c)
	}
}

func TestTrayBit(t *testing.T) {
	tests := []struct {
		name   string
		mask   uint32
		unit   int
		tray   int
		want   bool
	}{
		{"unit 0 tray 0", 0x1, 0, 0, true},
		{"unit 1 tray 1", 0x20, 1, 1, true},
		{"unset bit", 0x20, 0, 0, false},
		{"ams ht hub at offset 16", 0x10000, amsHTUnitID, 0, true},
		{"out of range reads unset", 0x0, 9, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trayBit(tt.mask, tt.unit, tt.tray); got != tt.want {
				t.Fatalf("trayBit(%#x, %d, %d) = %v, want %v", tt.mask, tt.unit, tt.tray, got, tt.want)
			}
		})
	}
}
