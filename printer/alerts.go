// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

import "time"

// Alert is one active HMS (Health Management System) entry.
type Alert struct {
	Code uint32
	// Module and Severity are unpacked from the report's attr field.
	Module   uint8
	Severity uint8
	Message  string
	// FirstSeen is when this code first appeared. A recurring code
	// keeps one entry and refreshes this timestamp.
	FirstSeen time.Time
}

// attr field layout: module in bits 24-31, severity in bits 16-23.
const (
	hmsModuleShift   = 24
	hmsSeverityShift = 16
	hmsByteMask      = 0xFF
)

// upsertAlerts merges an HMS list into the snapshot's alerts by code.
// Known codes refresh their timestamp and move to the front; new codes
// are inserted at the front. The result stays most-recent-first. An
// empty list is the device saying "no active errors" and clears
// everything.
func (s *Snapshot) upsertAlerts(reports []hmsReport, now time.Time) {
	s.AlertsReported = true
	if len(reports) == 0 {
		s.Alerts = nil
		return
	}

	for _, r := range reports {
		alert := Alert{
			Code:      r.Code,
			Module:    uint8((r.Attr >> hmsModuleShift) & hmsByteMask),
			Severity:  uint8((r.Attr >> hmsSeverityShift) & hmsByteMask),
			Message:   hmsMessage(r.Code),
			FirstSeen: now,
		}
		for i := range s.Alerts {
			if s.Alerts[i].Code == r.Code {
				s.Alerts = append(s.Alerts[:i], s.Alerts[i+1:]...)
				break
			}
		}
		s.Alerts = append([]Alert{alert}, s.Alerts...)
	}
}

// hmsMessage maps known HMS codes to short human messages. The table
// covers the codes Bambu documents; everything else points at the
// wiki.
func hmsMessage(code uint32) string {
	switch code {
	// AMS (0x0700xxxx)
	case 0x0700_0001:
		return "AMS: Filament runout"
	case 0x0700_0002:
		return "AMS: Filament broken"
	case 0x0700_0003:
		return "AMS: Filament tangled"
	case 0x0700_0004:
		return "AMS: Filament unloading failed"
	case 0x0700_0005:
		return "AMS: Filament loading failed"
	case 0x0700_0006:
		return "AMS: Slot empty"
	case 0x0700_0100:
		return "AMS: Assist motor overload"
	case 0x0700_0200:
		return "AMS: Cutter error"
	case 0x0700_0300:
		return "AMS: Filament may be tangled"
	case 0x0700_0400:
		return "AMS: RFID read error"
	case 0x0700_0500:
		return "AMS: AMS communication error"
	case 0x0700_1000:
		return "AMS: Humidity sensor error"

	// Nozzle (0x0300xxxx)
	case 0x0300_0001:
		return "Nozzle: Temperature too high"
	case 0x0300_0002:
		return "Nozzle: Temperature too low"
	case 0x0300_0003:
		return "Nozzle: Temperature abnormal"
	case 0x0300_0100:
		return "Nozzle: Heater error"
	case 0x0300_0200:
		return "Nozzle: Thermistor error"
	case 0x0300_0300:
		return "Nozzle: Clogged"

	// Bed (0x0400xxxx)
	case 0x0400_0001:
		return "Bed: Temperature too high"
	case 0x0400_0002:
		return "Bed: Temperature too low"
	case 0x0400_0100:
		return "Bed: Heater error"
	case 0x0400_0200:
		return "Bed: Thermistor error"

	// Motion (0x0500xxxx)
	case 0x0500_0001:
		return "Motion: X-axis homing failed"
	case 0x0500_0002:
		return "Motion: Y-axis homing failed"
	case 0x0500_0003:
		return "Motion: Z-axis homing failed"
	case 0x0500_0100:
		return "Motion: X-axis motor error"
	case 0x0500_0200:
		return "Motion: Y-axis motor error"
	case 0x0500_0300:
		return "Motion: Z-axis motor error"
	case 0x0500_0400:
		return "Motion: Extruder motor error"

	// Print (0x0C00xxxx)
	case 0x0C00_0001:
		return "Print: First layer inspection failed"
	case 0x0C00_0002:
		return "Print: Spaghetti detected"
	case 0x0C00_0003:
		return "Print: Foreign object on bed"
	case 0x0C00_0100:
		return "Print: Build plate not detected"
	case 0x0C00_0200:
		return "Print: Auto-leveling failed"
	case 0x0C00_0300:
		return "Print: Nozzle height abnormal"

	// System (0x0800xxxx)
	case 0x0800_0001:
		return "System: SD card error"
	case 0x0800_0002:
		return "System: Storage full"
	case 0x0800_0100:
		return "System: Camera error"
	case 0x0800_0200:
		return "System: WiFi disconnected"
	case 0x0800_0300:
		return "System: Chamber door open"
	case 0x0800_0400:
		return "System: Front cover removed"

	default:
		return "See wiki.bambulab.com"
	}
}
