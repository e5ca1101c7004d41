// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"log/slog"
	"strconv"
	"time"
)

// absoluteZeroC rejects temperature readings that are physically
// impossible. The device occasionally emits sentinel garbage on
// sensor glitches.
const absoluteZeroC = -273.15

// Merge folds one decoded report into the snapshot: every field the
// report carries overwrites the snapshot's value, every absent field
// keeps its last-known value. Replaying the same report is a no-op,
// and reports touching disjoint fields commute.
//
// Implausible values are rejected per field: logged, never fatal,
// and never aborting the rest of the report. now stamps first-seen
// times on new alerts; the caller supplies it so merging stays
// clock-free.
func (s *Snapshot) Merge(report *Report, now time.Time, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if report.Print != nil {
		s.mergePrint(report.Print, now, logger)
	}
	if report.Info != nil {
		s.mergeInfo(report.Info)
	}
}

func (s *Snapshot) mergePrint(r *PrintReport, now time.Time, logger *slog.Logger) {
	assign(&s.Job.GcodeFile, r.GcodeFile)
	assign(&s.Job.SubtaskName, r.SubtaskName)
	assign(&s.Job.GcodeState, r.GcodeState)
	assign(&s.Job.PrintType, r.PrintType)
	assign(&s.Job.StageCode, r.StageCode)

	if r.Progress != nil {
		if *r.Progress < 0 || *r.Progress > 100 {
			rejectField(logger, "mc_percent", *r.Progress)
		} else {
			assign(&s.Job.Progress, r.Progress)
		}
	}
	if r.LayerNum != nil {
		if *r.LayerNum < 0 {
			rejectField(logger, "layer_num", *r.LayerNum)
		} else {
			assign(&s.Job.Layer, r.LayerNum)
		}
	}
	if r.TotalLayerNum != nil {
		if *r.TotalLayerNum < 0 {
			rejectField(logger, "total_layer_num", *r.TotalLayerNum)
		} else {
			assign(&s.Job.TotalLayers, r.TotalLayerNum)
		}
	}
	if r.RemainingTime != nil {
		if *r.RemainingTime < 0 {
			rejectField(logger, "mc_remaining_time", *r.RemainingTime)
		} else {
			assign(&s.Job.RemainingMinutes, r.RemainingTime)
		}
	}
	if r.GcodeStartTime != nil {
		if ts, err := strconv.ParseInt(string(*r.GcodeStartTime), 10, 64); err == nil && ts > 0 {
			s.Job.StartedAt = &ts
		}
	}

	s.mergeTemp(&s.Thermal.Nozzle, r.NozzleTemper, "nozzle_temper", logger)
	s.mergeTemp(&s.Thermal.NozzleTarget, r.NozzleTargetTemper, "nozzle_target_temper", logger)
	s.mergeTemp(&s.Thermal.Bed, r.BedTemper, "bed_temper", logger)
	s.mergeTemp(&s.Thermal.BedTarget, r.BedTargetTemper, "bed_target_temper", logger)
	s.mergeTemp(&s.Thermal.Chamber, r.ChamberTemper, "chamber_temper", logger)

	if r.SpeedLevel != nil {
		profile := SpeedProfile(*r.SpeedLevel)
		if !profile.Valid() {
			rejectField(logger, "spd_lvl", *r.SpeedLevel)
		} else {
			s.Controls.Speed = &profile
		}
	}

	s.mergeFan(&s.Fans.Part, r.CoolingFanSpeed, "cooling_fan_speed", nil, logger)
	s.mergeFan(&s.Fans.Auxiliary, r.BigFan1Speed, "big_fan1_speed", &s.Meta.Observed.AuxFan, logger)
	s.mergeFan(&s.Fans.Chamber, r.BigFan2Speed, "big_fan2_speed", &s.Meta.Observed.ChamberFan, logger)
	if r.HeatbreakFanSpeed != nil {
		raw := string(*r.HeatbreakFanSpeed)
		s.mergeFan(&s.Fans.Heatbreak, &raw, "heatbreak_fan_speed", &s.Meta.Observed.HeatbreakFan, logger)
	}

	for _, light := range r.LightsReport {
		on := light.Mode == "on"
		switch light.Node {
		case "chamber_light":
			s.Controls.ChamberLight = &on
		case "work_light":
			s.Controls.WorkLight = &on
			s.Meta.Observed.WorkLight = true
		}
	}

	assign(&s.Meta.WifiSignal, r.WifiSignal)
	assign(&s.Meta.HardwareVersion, r.HardwareVer)
	assign(&s.Meta.FirmwareVersion, r.SoftwareVer)
	assign(&s.Meta.NozzleDiameter, r.NozzleDiameter)
	if r.MachineName != nil && *r.MachineName != "" {
		s.Name = *r.MachineName
	}

	if r.Xcam != nil {
		s.Meta.Observed.Xcam = true
		assignBool(&s.Meta.Xcam.SpaghettiDetector, r.Xcam.SpaghettiDetector)
		assignBool(&s.Meta.Xcam.FirstLayerInspector, r.Xcam.FirstLayerInspector)
		assignBool(&s.Meta.Xcam.PrintHalt, r.Xcam.PrintHalt)
	}
	if r.Ipcam != nil {
		s.Meta.Observed.Ipcam = true
		if r.Ipcam.Record != nil {
			on := *r.Ipcam.Record == "enable"
			s.Meta.Ipcam.Recording = &on
		}
		if r.Ipcam.Timelapse != nil {
			on := *r.Ipcam.Timelapse == "enable"
			s.Meta.Ipcam.Timelapse = &on
		}
		assign(&s.Meta.Ipcam.Resolution, r.Ipcam.Resolution)
	}

	if r.AMS != nil {
		s.mergeAMS(r.AMS, logger)
	}
	if r.HMS != nil {
		s.upsertAlerts(*r.HMS, now)
	}
}

// mergeInfo extracts firmware and hardware versions from a
// get_version response. The "ota" module carries the main firmware.
func (s *Snapshot) mergeInfo(r *InfoReport) {
	for _, module := range r.Module {
		if module.Name == nil || *module.Name != "ota" {
			continue
		}
		assign(&s.Meta.FirmwareVersion, module.SoftwareVer)
		assign(&s.Meta.HardwareVersion, module.HardwareVer)
		return
	}
}

func (s *Snapshot) mergeTemp(dst **float64, src *float64, field string, logger *slog.Logger) {
	if src == nil {
		return
	}
	if *src < absoluteZeroC {
		rejectField(logger, field, *src)
		return
	}
	assign(dst, src)
}

// mergeFan parses a 0-15 scale fan value into a percentage. observed,
// when non-nil, records that the device reports this fan at all.
func (s *Snapshot) mergeFan(dst **int, raw *string, field string, observed *bool, logger *slog.Logger) {
	if raw == nil {
		return
	}
	percent, ok := parseFanSpeed(*raw)
	if !ok {
		rejectField(logger, field, *raw)
		return
	}
	*dst = &percent
	if observed != nil {
		*observed = true
	}
}

func (s *Snapshot) mergeAMS(r *amsReport, logger *slog.Logger) {
	a := s.AMS
	if a == nil {
		a = &AMS{}
	}

	// tray_now packs the selection as unit*4+tray, with 254 (external
	// spool) and 255 (none) clearing it.
	if r.TrayNow != nil {
		if v, err := strconv.Atoi(string(*r.TrayNow)); err == nil {
			if v >= 0 && v < trayExternalSpool && v/traysPerUnit < maxUnits {
				unit, tray := v/traysPerUnit, v%traysPerUnit
				a.ActiveUnit, a.ActiveTray = &unit, &tray
			} else {
				a.ActiveUnit, a.ActiveTray = nil, nil
			}
		}
	}

	if r.ExistBits != nil {
		a.ExistBits = parseHexBits(*r.ExistBits)
	}
	if r.TrayExistBits != nil {
		a.TrayExistBits = parseHexBits(*r.TrayExistBits)
	}
	if r.TrayBBLBits != nil {
		a.TrayBBLBits = parseHexBits(*r.TrayBBLBits)
	}
	if r.TrayReadDoneBits != nil {
		a.TrayReadDoneBits = parseHexBits(*r.TrayReadDoneBits)
	}
	if r.TrayReadingBits != nil {
		a.TrayReadingBits = parseHexBits(*r.TrayReadingBits)
	}

	// A present unit list is authoritative for structure: fewer units
	// or trays than before drops the stale trailing entries.
	if r.Units != nil {
		units := make([]AMSUnit, 0, len(*r.Units))
		for _, u := range *r.Units {
			unitID, _ := strconv.Atoi(string(u.ID))
			unit := AMSUnit{ID: unitID}
			if u.Humidity != nil {
				if h, err := strconv.Atoi(string(*u.Humidity)); err == nil {
					unit.Humidity = &h
				}
			}
			if u.Trays != nil {
				unit.Trays = make([]AMSTray, 0, len(*u.Trays))
				for _, t := range *u.Trays {
					unit.Trays = append(unit.Trays, buildTray(t, unitID, a, logger))
				}
			}
			// AMS Lite has two slots instead of four.
			unit.Lite = len(unit.Trays) > 0 && len(unit.Trays) <= 2
			units = append(units, unit)
		}
		a.Units = units
	}

	// The active selection must reference a real slot once structure
	// is known.
	if len(a.Units) > 0 && a.ActiveUnit != nil {
		if *a.ActiveUnit >= len(a.Units) ||
			a.ActiveTray == nil ||
			*a.ActiveTray >= len(a.Units[*a.ActiveUnit].Trays) {
			a.ActiveUnit, a.ActiveTray = nil, nil
		}
	}

	s.AMS = a
}

func buildTray(t amsTrayReport, unitID int, a *AMS, logger *slog.Logger) AMSTray {
	trayID, _ := strconv.Atoi(string(t.ID))
	tray := AMSTray{
		ID:       trayID,
		Present:  trayBit(a.TrayExistBits, unitID, trayID),
		BBL:      trayBit(a.TrayBBLBits, unitID, trayID),
		ReadDone: trayBit(a.TrayReadDoneBits, unitID, trayID),
		Reading:  trayBit(a.TrayReadingBits, unitID, trayID),
	}
	assign(&tray.Material, t.TrayType)
	assign(&tray.SubBrand, t.TraySubBrands)
	if t.TrayColor != nil {
		tray.Color = parseHexColor(*t.TrayColor)
	}
	if t.Remain != nil {
		if *t.Remain < 0 || *t.Remain > 100 {
			rejectField(logger, "remain", *t.Remain)
		} else {
			assign(&tray.RemainingPercent, t.Remain)
		}
	}
	if t.NozzleTempMin != nil {
		if v, err := strconv.Atoi(string(*t.NozzleTempMin)); err == nil {
			tray.NozzleTempMin = &v
		}
	}
	if t.NozzleTempMax != nil {
		if v, err := strconv.Atoi(string(*t.NozzleTempMax)); err == nil {
			tray.NozzleTempMax = &v
		}
	}
	return tray
}

// assign copies a present source field over the destination. The
// value is copied, never aliased, so snapshots own their memory.
func assign[T any](dst **T, src *T) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

func assignBool(dst **bool, src *looseBool) {
	if src == nil {
		return
	}
	v := bool(*src)
	*dst = &v
}

func rejectField(logger *slog.Logger, field string, value any) {
	logger.Warn("report field rejected as implausible", "field", field, "value", value)
}
