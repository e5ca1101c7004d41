// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

// Special tray_now values: 254 means the external spool is feeding,
// 255 means nothing is selected. Anything below maps to an AMS slot.
const (
	trayExternalSpool = 254
	traysPerUnit      = 4
	maxUnits          = 4
)

// The AMS HT hub reports unit ID 128 and occupies bit offset 16 in
// the tray bitmask fields.
const (
	amsHTUnitID        = 128
	amsHTTrayBitOffset = 16
)

// AMS is the filament-handling system state: the units attached to
// the printer and which slot is actively feeding.
type AMS struct {
	Units []AMSUnit

	// ActiveUnit/ActiveTray index the feeding slot. Both nil when the
	// external spool is in use or nothing is selected. When set, they
	// always reference an existing unit and slot.
	ActiveUnit *int
	ActiveTray *int

	// Bitmasks reported alongside the unit list. Cached so a report
	// that refreshes trays without resending masks keeps prior bits.
	ExistBits        uint32
	TrayExistBits    uint32
	TrayBBLBits      uint32
	TrayReadDoneBits uint32
	TrayReadingBits  uint32
}

// AMSUnit is one physical AMS box.
type AMSUnit struct {
	ID int

	// Humidity is the device's five-step dryness index, 1 (driest)
	// through 5. Nil when unreported.
	Humidity *int

	Trays []AMSTray

	// Lite marks an AMS Lite, which has two slots instead of four.
	Lite bool
}

// HumidityGrade renders the humidity index as a letter grade A-E,
// or "" when unknown.
func (u AMSUnit) HumidityGrade() string {
	if u.Humidity == nil {
		return ""
	}
	idx := *u.Humidity
	if idx < 1 || idx > 5 {
		return ""
	}
	return string(rune('A' + idx - 1))
}

// AMSTray is one filament slot.
type AMSTray struct {
	ID               int
	Material         *string
	Color            *RGB
	RemainingPercent *int
	SubBrand         *string
	NozzleTempMin    *int
	NozzleTempMax    *int

	// Flags decoded from the unit bitmasks.
	Present  bool
	BBL      bool
	ReadDone bool
	Reading  bool
}

// RGB is a filament color parsed from the device's hex string.
type RGB struct {
	R, G, B uint8
}

func (a *AMS) clone() *AMS {
	if a == nil {
		return nil
	}
	out := *a
	out.ActiveUnit = clonePtr(a.ActiveUnit)
	out.ActiveTray = clonePtr(a.ActiveTray)
	out.Units = make([]AMSUnit, len(a.Units))
	for i, unit := range a.Units {
		cloned := unit
		cloned.Humidity = clonePtr(unit.Humidity)
		cloned.Trays = make([]AMSTray, len(unit.Trays))
		for j, tray := range unit.Trays {
			t := tray
			t.Material = clonePtr(tray.Material)
			t.Color = clonePtr(tray.Color)
			t.RemainingPercent = clonePtr(tray.RemainingPercent)
			t.SubBrand = clonePtr(tray.SubBrand)
			t.NozzleTempMin = clonePtr(tray.NozzleTempMin)
			t.NozzleTempMax = clonePtr(tray.NozzleTempMax)
			cloned.Trays[j] = t
		}
		out.Units[i] = cloned
	}
	return &out
}

// trayBit tests one slot's bit in a bitmask field. Standard units use
// bit unit*4+tray; the AMS HT hub sits at offset 16. Out-of-range
// positions read as unset.
func trayBit(mask uint32, unitID, trayID int) bool {
	var offset int
	if unitID == amsHTUnitID {
		offset = amsHTTrayBitOffset + trayID
	} else {
		offset = unitID*traysPerUnit + trayID
	}
	if offset < 0 || offset >= 32 {
		return false
	}
	return mask&(1<<offset) != 0
}
