// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

// ModelFromSerial maps a serial number prefix to the marketing model
// name. Prefixes follow wiki.bambulab.com/en/general/find-sn; note
// that 01P/01S are counterintuitively swapped (01P=P1S, 01S=P1P).
func ModelFromSerial(serial string) string {
	if len(serial) < 3 {
		return "Bambu Printer"
	}
	switch serial[:3] {
	case "01P":
		return "Bambu Lab P1S"
	case "01S":
		return "Bambu Lab P1P"
	case "22E":
		return "Bambu Lab P2S"
	case "00M":
		return "Bambu Lab X1C"
	case "03W":
		return "Bambu Lab X1E"
	case "030":
		return "Bambu Lab A1 Mini"
	case "039":
		return "Bambu Lab A1"
	case "31B":
		return "Bambu Lab H2C"
	case "093":
		return "Bambu Lab H2S"
	case "094":
		return "Bambu Lab H2D"
	case "239":
		return "Bambu Lab H2D Pro"
	default:
		return "Bambu Printer"
	}
}

// modelHasChamberSensor lists the enclosed models with a real chamber
// temperature sensor. The P1 series has a chamber fan but no sensor,
// and open-frame A1 machines report ambient noise on chamber_temper.
func modelHasChamberSensor(model string) bool {
	switch model {
	case "Bambu Lab X1C",
		"Bambu Lab X1E",
		"Bambu Lab P2S",
		"Bambu Lab H2C",
		"Bambu Lab H2S",
		"Bambu Lab H2D",
		"Bambu Lab H2D Pro":
		return true
	}
	return false
}
