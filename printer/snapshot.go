// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"strings"
	"time"
)

// Snapshot is the canonical state of one printer, accumulated from
// partial reports. A freshly created Snapshot knows nothing: every
// pointer field is nil until the device first reports it, so readers
// can always tell "unknown" from a real zero.
//
// Snapshot is not safe for concurrent use. The owning session mutates
// it single-threaded and hands out deep copies via Clone.
type Snapshot struct {
	// Name is the user-assigned display name from configuration, or
	// the machine name once the device reports one.
	Name string

	// Model is derived from the serial number prefix at creation.
	Model string

	// SerialSuffix is the last four characters of the serial, for
	// compact display.
	SerialSuffix string

	Job      Job
	Thermal  Thermal
	Fans     Fans
	AMS      *AMS
	Alerts   []Alert
	Controls Controls
	Meta     Meta

	// AlertsReported records whether an HMS list has ever arrived,
	// distinguishing "no errors" from "no data yet".
	AlertsReported bool

	// UpdatedAt is when the last report was merged. Zero before the
	// first report. Stamped by the session, not by Merge.
	UpdatedAt time.Time
}

// Job describes the current print job.
type Job struct {
	GcodeFile   *string
	SubtaskName *string
	// Progress is the completion percentage, 0-100.
	Progress         *int
	Layer            *int
	TotalLayers      *int
	RemainingMinutes *int
	// GcodeState is the device's job state string (RUNNING, PAUSE,
	// FINISH, FAILED, IDLE, ...).
	GcodeState *string
	// PrintType distinguishes local from cloud jobs.
	PrintType *string
	// StageCode is the device's stg_cur value describing what the
	// machine is physically doing right now.
	StageCode *int
	// StartedAt is the Unix timestamp the job started, when reported.
	StartedAt *int64
}

// Thermal holds temperature readings in degrees Celsius. Current and
// target values update independently.
type Thermal struct {
	Nozzle       *float64
	NozzleTarget *float64
	Bed          *float64
	BedTarget    *float64
	Chamber      *float64
}

// Fans holds fan speeds as percentages (0-100), converted from the
// device's 0-15 scale.
type Fans struct {
	Part      *int
	Auxiliary *int
	Chamber   *int
	Heatbreak *int
}

// Controls holds the user-controllable device settings the printer
// reports back.
type Controls struct {
	ChamberLight *bool
	WorkLight    *bool
	Speed        *SpeedProfile
}

// Meta holds identity and capability details that change rarely.
type Meta struct {
	WifiSignal      *string
	FirmwareVersion *string
	HardwareVersion *string
	NozzleDiameter  *string

	Xcam  XcamFlags
	Ipcam IpcamFlags

	// Observed records which optional subsystems the device has ever
	// mentioned. Capability detection is data-driven: a feature that
	// never appears in any report does not exist on this machine.
	Observed Observed
}

// XcamFlags is the AI monitoring configuration.
type XcamFlags struct {
	SpaghettiDetector   *bool
	FirstLayerInspector *bool
	PrintHalt           *bool
}

// IpcamFlags is the chamber camera configuration.
type IpcamFlags struct {
	Recording  *bool
	Timelapse  *bool
	Resolution *string
}

// Observed tracks optional subsystems seen in at least one report.
type Observed struct {
	HeatbreakFan bool
	AuxFan       bool
	ChamberFan   bool
	WorkLight    bool
	Xcam         bool
	Ipcam        bool
}

// New returns an empty Snapshot for a device. The model and serial
// suffix are derived from the serial number; everything else stays
// unknown until the first report.
func New(name, serial string) *Snapshot {
	s := &Snapshot{
		Name:  name,
		Model: ModelFromSerial(serial),
	}
	if len(serial) >= 4 {
		s.SerialSuffix = serial[len(serial)-4:]
	}
	return s
}

// Clone returns a deep copy. The registry hands clones to readers so
// the owning session never shares mutable state across goroutines.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Job = cloneJob(s.Job)
	out.Thermal = Thermal{
		Nozzle:       clonePtr(s.Thermal.Nozzle),
		NozzleTarget: clonePtr(s.Thermal.NozzleTarget),
		Bed:          clonePtr(s.Thermal.Bed),
		BedTarget:    clonePtr(s.Thermal.BedTarget),
		Chamber:      clonePtr(s.Thermal.Chamber),
	}
	out.Fans = Fans{
		Part:      clonePtr(s.Fans.Part),
		Auxiliary: clonePtr(s.Fans.Auxiliary),
		Chamber:   clonePtr(s.Fans.Chamber),
		Heatbreak: clonePtr(s.Fans.Heatbreak),
	}
	out.AMS = s.AMS.clone()
	out.Alerts = append([]Alert(nil), s.Alerts...)
	out.Controls = Controls{
		ChamberLight: clonePtr(s.Controls.ChamberLight),
		WorkLight:    clonePtr(s.Controls.WorkLight),
		Speed:        clonePtr(s.Controls.Speed),
	}
	out.Meta = cloneMeta(s.Meta)
	return &out
}

func cloneJob(j Job) Job {
	return Job{
		GcodeFile:        clonePtr(j.GcodeFile),
		SubtaskName:      clonePtr(j.SubtaskName),
		Progress:         clonePtr(j.Progress),
		Layer:            clonePtr(j.Layer),
		TotalLayers:      clonePtr(j.TotalLayers),
		RemainingMinutes: clonePtr(j.RemainingMinutes),
		GcodeState:       clonePtr(j.GcodeState),
		PrintType:        clonePtr(j.PrintType),
		StageCode:        clonePtr(j.StageCode),
		StartedAt:        clonePtr(j.StartedAt),
	}
}

func cloneMeta(m Meta) Meta {
	return Meta{
		WifiSignal:      clonePtr(m.WifiSignal),
		FirmwareVersion: clonePtr(m.FirmwareVersion),
		HardwareVersion: clonePtr(m.HardwareVersion),
		NozzleDiameter:  clonePtr(m.NozzleDiameter),
		Xcam: XcamFlags{
			SpaghettiDetector:   clonePtr(m.Xcam.SpaghettiDetector),
			FirstLayerInspector: clonePtr(m.Xcam.FirstLayerInspector),
			PrintHalt:           clonePtr(m.Xcam.PrintHalt),
		},
		Ipcam: IpcamFlags{
			Recording:  clonePtr(m.Ipcam.Recording),
			Timelapse:  clonePtr(m.Ipcam.Timelapse),
			Resolution: clonePtr(m.Ipcam.Resolution),
		},
		Observed: m.Observed,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Active reports whether a job is running or paused.
func (s *Snapshot) Active() bool {
	if s.Job.GcodeState == nil {
		return false
	}
	switch *s.Job.GcodeState {
	case "RUNNING", "PAUSE":
		return true
	}
	return false
}

// HasChamberSensor reports whether this model carries a real chamber
// temperature sensor. Open-frame machines report ambient noise on the
// chamber field and should not surface it.
func (s *Snapshot) HasChamberSensor() bool {
	return modelHasChamberSensor(s.Model)
}

// ActiveFilament returns the material loaded in the currently selected
// AMS tray, or "" when no AMS, no selection, or an empty tray.
func (s *Snapshot) ActiveFilament() string {
	a := s.AMS
	if a == nil || a.ActiveUnit == nil || a.ActiveTray == nil {
		return ""
	}
	unit := *a.ActiveUnit
	tray := *a.ActiveTray
	if unit >= len(a.Units) || tray >= len(a.Units[unit].Trays) {
		return ""
	}
	material := a.Units[unit].Trays[tray].Material
	if material == nil {
		return ""
	}
	return *material
}

// DisplayName returns the best human name for the current job. The
// subtask name wins over the gcode filename; file extensions are
// stripped; cloud jobs that only carry slicer-profile text get a
// "Cloud:" prefix so the profile string is not mistaken for a project
// name.
func (s *Snapshot) DisplayName() string {
	subtask := cleanJobName(deref(s.Job.SubtaskName))
	gcode := cleanJobName(deref(s.Job.GcodeFile))

	if subtask != "" && !looksLikeSlicerProfile(subtask) {
		return subtask
	}
	if gcode != "" && !looksLikeSlicerProfile(gcode) {
		return gcode
	}

	profile := subtask
	if profile == "" {
		profile = gcode
	}
	if profile == "" {
		return ""
	}
	if deref(s.Job.PrintType) == "cloud" {
		return "Cloud: " + profile
	}
	return profile
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cleanJobName(name string) string {
	trimmed := strings.TrimSpace(name)
	for _, ext := range []string{".gcode.3mf", ".gcode", ".3mf"} {
		trimmed = strings.TrimSuffix(trimmed, ext)
	}
	return trimmed
}

// looksLikeSlicerProfile detects names that are really slicer settings
// ("0.2mm layer, 2 walls, 15% infill") rather than project names.
func looksLikeSlicerProfile(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "mm layer") ||
		strings.Contains(lower, "% infill") ||
		strings.Contains(lower, " walls") {
		return true
	}
	terms := 0
	for _, term := range []string{"pla", "petg", "abs", "tpu", "draft", "quality", "strength"} {
		if strings.Contains(lower, term) {
			terms++
		}
	}
	return terms >= 2
}
