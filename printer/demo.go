// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

// DemoScript returns a scripted sequence of raw report payloads that
// walk a fake printer through a short job: full status push, heating,
// leveling, printing with progress, a transient AMS alert, and a
// finish. Fed through the normal decode and merge path so demo mode
// exercises exactly the production code.
func DemoScript() [][]byte {
	payloads := []string{
		// Initial full push after connect.
		`{"print":{
			"command":"push_status",
			"machine_name":"Demo Lab",
			"gcode_state":"IDLE",
			"nozzle_temper":24.1,"nozzle_target_temper":0,
			"bed_temper":23.8,"bed_target_temper":0,
			"chamber_temper":24.0,
			"cooling_fan_speed":"0","big_fan1_speed":"0","big_fan2_speed":"0",
			"heatbreak_fan_speed":"0",
			"spd_lvl":2,
			"wifi_signal":"-48dBm",
			"lights_report":[{"node":"chamber_light","mode":"on"}],
			"hms":[],
			"ams":{
				"tray_now":"255",
				"tray_exist_bits":"7","tray_is_bbl_bits":"3",
				"ams":[{"id":"0","humidity":"2","tray":[
					{"id":"0","tray_type":"PLA","tray_color":"10B04AFF","remain":82},
					{"id":"1","tray_type":"PETG","tray_color":"2850E0FF","remain":45},
					{"id":"2","tray_type":"TPU","tray_color":"E02828FF","remain":97},
					{"id":"3"}
				]}]
			}
		}}`,
		`{"info":{"module":[{"name":"ota","sw_ver":"01.08.02.00","hw_ver":"AP05"}]}}`,

		// Job starts: bed heats first.
		`{"print":{
			"gcode_state":"RUNNING","stg_cur":2,
			"subtask_name":"benchy","gcode_file":"benchy.gcode.3mf",
			"print_type":"local","mc_percent":0,
			"layer_num":0,"total_layer_num":112,"mc_remaining_time":58,
			"bed_temper":31.2,"bed_target_temper":65.0,
			"ams":{"tray_now":"0"}
		}}`,
		`{"print":{"bed_temper":52.7}}`,
		`{"print":{
			"stg_cur":7,
			"bed_temper":65.1,
			"nozzle_temper":118.4,"nozzle_target_temper":220.0,
			"heatbreak_fan_speed":"15"
		}}`,
		`{"print":{"stg_cur":1,"nozzle_temper":220.2}}`,

		// Printing with progress.
		`{"print":{"stg_cur":0,"mc_percent":4,"layer_num":5,"mc_remaining_time":55,"cooling_fan_speed":"10"}}`,
		`{"print":{"mc_percent":18,"layer_num":21,"mc_remaining_time":46}}`,

		// Transient AMS alert that later clears.
		`{"print":{"hms":[{"attr":117506048,"code":117440771}]}}`,
		`{"print":{"mc_percent":42,"layer_num":48,"mc_remaining_time":32}}`,
		`{"print":{"hms":[]}}`,

		`{"print":{"mc_percent":71,"layer_num":80,"mc_remaining_time":16}}`,
		`{"print":{"mc_percent":93,"layer_num":105,"mc_remaining_time":4}}`,

		// Done.
		`{"print":{
			"gcode_state":"FINISH","mc_percent":100,"layer_num":112,
			"mc_remaining_time":0,
			"nozzle_target_temper":0,"bed_target_temper":0,
			"cooling_fan_speed":"0",
			"ams":{"tray_now":"255"}
		}}`,
	}

	out := make([][]byte, len(payloads))
	for i, p := range payloads {
		out[i] = []byte(p)
	}
	return out
}
