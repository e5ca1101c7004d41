// Copyright 2026 The Bambumon Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the device roster from a YAML file. The file
// is the single source of truth: there is no discovery, no default
// path probing, and unknown keys are errors so typos fail loudly.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the printer's local MQTT port.
const DefaultPort = 8883

// Config is the parsed configuration file.
type Config struct {
	// Devices lists the printers to connect to. File order is
	// preserved everywhere devices are displayed or iterated.
	Devices []Device `yaml:"devices"`
}

// Device identifies one printer on the local network.
type Device struct {
	// Name is the display name. Reports may later override it with
	// the device's own machine name.
	Name string `yaml:"name"`

	// Host is the printer's IP address or hostname.
	Host string `yaml:"host"`

	// Serial is the full serial number. It selects the MQTT topics
	// and determines the model.
	Serial string `yaml:"serial"`

	// AccessCode is the LAN access code shown on the printer's
	// network settings screen.
	AccessCode string `yaml:"access_code"`

	// Port is the MQTT port, defaulting to 8883.
	Port int `yaml:"port"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes and validates configuration bytes.
func Parse(raw []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	var config Config
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	for i := range config.Devices {
		if config.Devices[i].Port == 0 {
			config.Devices[i].Port = DefaultPort
		}
	}
	return &config, nil
}

func (c *Config) validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("no devices configured")
	}
	seen := make(map[string]int, len(c.Devices))
	for i, device := range c.Devices {
		if device.Name == "" {
			return fmt.Errorf("device %d: name is required", i)
		}
		if device.Host == "" {
			return fmt.Errorf("device %q: host is required", device.Name)
		}
		if device.Serial == "" {
			return fmt.Errorf("device %q: serial is required", device.Name)
		}
		if device.AccessCode == "" {
			return fmt.Errorf("device %q: access_code is required", device.Name)
		}
		if device.Port < 0 || device.Port > 65535 {
			return fmt.Errorf("device %q: port %d out of range", device.Name, device.Port)
		}
		if prev, dup := seen[device.Serial]; dup {
			return fmt.Errorf("device %q: serial %s already used by %q",
				device.Name, device.Serial, c.Devices[prev].Name)
		}
		seen[device.Serial] = i
	}
	return nil
}
