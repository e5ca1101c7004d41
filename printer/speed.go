// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

// SpeedProfile is the printer's global speed setting. The numeric
// values match the device's spd_lvl field and the print_speed command
// parameter.
type SpeedProfile int

const (
	SpeedSilent    SpeedProfile = 1
	SpeedStandard  SpeedProfile = 2
	SpeedSport     SpeedProfile = 3
	SpeedLudicrous SpeedProfile = 4
)

// Valid reports whether p is one of the four device profiles.
func (p SpeedProfile) Valid() bool {
	return p >= SpeedSilent && p <= SpeedLudicrous
}

func (p SpeedProfile) String() string {
	switch p {
	case SpeedSilent:
		return "Silent"
	case SpeedSport:
		return "Sport"
	case SpeedLudicrous:
		return "Ludicrous"
	default:
		return "Standard"
	}
}

// Percent returns the profile's nominal feed rate relative to
// Standard. Unknown profiles read as Standard.
func (p SpeedProfile) Percent() int {
	switch p {
	case SpeedSilent:
		return 50
	case SpeedSport:
		return 124
	case SpeedLudicrous:
		return 166
	default:
		return 100
	}
}

// Faster returns the next profile up, clamped at Ludicrous.
func (p SpeedProfile) Faster() SpeedProfile {
	if !p.Valid() {
		return SpeedStandard
	}
	if p == SpeedLudicrous {
		return SpeedLudicrous
	}
	return p + 1
}

// Slower returns the next profile down, clamped at Silent.
func (p SpeedProfile) Slower() SpeedProfile {
	if !p.Valid() {
		return SpeedStandard
	}
	if p == SpeedSilent {
		return SpeedSilent
	}
	return p - 1
}
