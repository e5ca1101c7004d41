// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

// Phase is the coarse job phase shown per device. It collapses the
// device's stage codes and job state into a closed set.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseIdle
	PhaseHeatingBed
	PhaseHeatingNozzle
	PhaseLeveling
	PhasePrinting
	PhasePaused
	PhaseFinished
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseHeatingBed:
		return "Heating Bed"
	case PhaseHeatingNozzle:
		return "Heating Nozzle"
	case PhaseLeveling:
		return "Leveling"
	case PhasePrinting:
		return "Printing"
	case PhasePaused:
		return "Paused"
	case PhaseFinished:
		return "Finished"
	case PhaseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Stage codes from the device's stg_cur field. The full table comes
// from the ha-bambulab integration's CURRENT_STAGE_IDS; only the codes
// that map onto a phase are named here.
const (
	stageAutoLeveling          = 1
	stageHeatbedPreheating     = 2
	stageM400Pause             = 5
	stageFilamentRunout        = 6
	stageHeatingHotend         = 7
	stageUserPaused            = 16
	stageCoverOpen             = 17
	stageNozzleTempMalfunction = 20
	stageBedTempMalfunction    = 21
)

// heatingThreshold is how far (degrees C) below target a current
// temperature must be before the phase counts as heating.
const heatingThreshold = 5.0

// Phase derives the current phase from job state, stage code, and
// temperatures. The stage code wins when it names something specific;
// otherwise the phase falls back to temperature inference, then to
// progress.
func (s *Snapshot) Phase() Phase {
	if state := s.Job.GcodeState; state != nil {
		switch *state {
		case "FINISH":
			return PhaseFinished
		case "FAILED":
			return PhaseError
		}
	}
	if !s.Active() {
		if s.Job.GcodeState == nil {
			return PhaseUnknown
		}
		return PhaseIdle
	}

	if code := s.Job.StageCode; code != nil {
		switch *code {
		case stageAutoLeveling:
			return PhaseLeveling
		case stageHeatbedPreheating:
			return PhaseHeatingBed
		case stageHeatingHotend:
			return PhaseHeatingNozzle
		case stageM400Pause, stageUserPaused, stageFilamentRunout, stageCoverOpen:
			return PhasePaused
		case stageNozzleTempMalfunction, stageBedTempMalfunction:
			return PhaseError
		}
	}

	if *s.Job.GcodeState == "PAUSE" {
		return PhasePaused
	}
	if heating(s.Thermal.Bed, s.Thermal.BedTarget) {
		return PhaseHeatingBed
	}
	if heating(s.Thermal.Nozzle, s.Thermal.NozzleTarget) {
		return PhaseHeatingNozzle
	}
	return PhasePrinting
}

func heating(current, target *float64) bool {
	if current == nil || target == nil {
		return false
	}
	return *target > 0 && *current < *target-heatingThreshold
}
