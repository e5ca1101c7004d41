// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// bambumon is a headless monitor for Bambu Lab printers on the local
// network. It connects to every device in the roster, logs state
// transitions and command resolutions, and prints a periodic status
// line per printer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bambumon/bambumon/command"
	"github.com/bambumon/bambumon/config"
	"github.com/bambumon/bambumon/lib/clock"
	"github.com/bambumon/bambumon/registry"
	"github.com/bambumon/bambumon/session"
)

const statusInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bambumon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to the device roster YAML (required unless --demo)")
	demo := pflag.Bool("demo", false, "monitor a built-in scripted printer instead of real devices")
	unlock := pflag.Bool("unlock", false, "release the control lock on startup")
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, or error")
	pflag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	options := registry.Options{Clock: clock.Real(), Logger: logger}
	var devices []config.Device
	switch {
	case *demo:
		devices = []config.Device{demoDevice()}
		options.NewTransport = func(config.Device) session.Transport {
			return session.NewDemoTransport(clock.Real())
		}
	case *configPath == "":
		return fmt.Errorf("--config is required (or pass --demo)")
	default:
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		devices = loaded.Devices
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fleet := registry.New(options)
	defer fleet.Close()
	fleet.Apply(devices)
	if *unlock {
		for _, device := range devices {
			if err := fleet.SetLocked(device.Serial, false); err != nil {
				return err
			}
		}
	}

	// SIGHUP reloads the roster without restarting untouched sessions.
	reload := make(chan os.Signal, 1)
	if !*demo {
		signal.Notify(reload, syscall.SIGHUP)
	}

	monitor(ctx, logger, fleet, reload, *configPath)
	logger.Info("shutting down")
	return nil
}

// monitor consumes fleet events until the context ends.
func monitor(ctx context.Context, logger *slog.Logger, fleet *registry.Registry, reload <-chan os.Signal, configPath string) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-fleet.Events():
			if event.Kind == registry.EventState {
				logState(logger, event)
			}
		case notification := <-fleet.Notifications():
			logNotification(logger, notification)
		case <-reload:
			loaded, err := config.Load(configPath)
			if err != nil {
				logger.Error("config reload failed, keeping current roster", "error", err)
				continue
			}
			logger.Info("config reloaded", "devices", len(loaded.Devices))
			fleet.Apply(loaded.Devices)
		case <-ticker.C:
			logStatus(logger, fleet)
		}
	}
}

func logState(logger *slog.Logger, event registry.Event) {
	args := []any{"serial", event.Serial, "phase", event.State.Phase.String()}
	if event.State.Phase == session.PhaseReconnecting {
		args = append(args,
			"attempt", event.State.Attempt,
			"next_retry", event.State.NextRetryAt.Format(time.RFC3339),
		)
	}
	if event.State.AuthRejected {
		args = append(args, "auth_rejected", true)
	}
	logger.Info("connection state", args...)
}

func logNotification(logger *slog.Logger, notification command.Notification) {
	args := []any{
		"serial", notification.Serial,
		"action", notification.Action.String(),
		"outcome", notification.Outcome.String(),
	}
	if notification.Reason != "" {
		args = append(args, "reason", notification.Reason)
	}
	logger.Info("command resolved", args...)
}

func logStatus(logger *slog.Logger, fleet *registry.Registry) {
	for _, view := range fleet.Views() {
		snapshot := view.Snapshot
		args := []any{
			"name", snapshot.Name,
			"model", snapshot.Model,
			"connection", view.State.Phase.String(),
			"phase", snapshot.Phase().String(),
		}
		if job := snapshot.DisplayName(); job != "" {
			args = append(args, "job", job)
		}
		if snapshot.Job.Progress != nil {
			args = append(args, "progress", fmt.Sprintf("%d%%", *snapshot.Job.Progress))
		}
		if snapshot.Job.RemainingMinutes != nil {
			args = append(args, "remaining", fmt.Sprintf("%dm", *snapshot.Job.RemainingMinutes))
		}
		if snapshot.Thermal.Nozzle != nil {
			args = append(args, "nozzle", formatTemp(snapshot.Thermal.Nozzle, snapshot.Thermal.NozzleTarget))
		}
		if snapshot.Thermal.Bed != nil {
			args = append(args, "bed", formatTemp(snapshot.Thermal.Bed, snapshot.Thermal.BedTarget))
		}
		if snapshot.HasChamberSensor() && snapshot.Thermal.Chamber != nil {
			args = append(args, "chamber", fmt.Sprintf("%.1f", *snapshot.Thermal.Chamber))
		}
		if filament := snapshot.ActiveFilament(); filament != "" {
			args = append(args, "filament", filament)
		}
		if len(snapshot.Alerts) > 0 {
			args = append(args, "alert", snapshot.Alerts[0].Message)
		}
		logger.Info("status", args...)
	}
}

func formatTemp(current, target *float64) string {
	if target != nil && *target > 0 {
		return fmt.Sprintf("%.1f/%.1f", *current, *target)
	}
	return fmt.Sprintf("%.1f", *current)
}

func demoDevice() config.Device {
	return config.Device{
		Name:       "Demo",
		Host:       "demo.invalid",
		Serial:     "00M09A9B0700123",
		AccessCode: "demo",
		Port:       config.DefaultPort,
	}
}

func parseLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
