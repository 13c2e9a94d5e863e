// Package config loads the serial-port device map handed to an Instrument
// at construction time, the way a deployed sequencer is pointed at real
// /dev/tty* paths rather than having them hardcoded.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Ports names the logical serial links an Instrument needs, each mapped to
// an OS device path (or, in tests, an arbitrary identifier consumed by a
// fake transport).
type Ports struct {
	X        string `yaml:"x"`
	Y        string `yaml:"y"`
	FPGACmd  string `yaml:"fpgacmd"`
	FPGAResp string `yaml:"fpgaresp"`
	LaserG   string `yaml:"laser_g"`
	LaserR   string `yaml:"laser_r"`
	ValveA1  string `yaml:"valve_a1"`
	ValveA2  string `yaml:"valve_a2"`
	ValveB1  string `yaml:"valve_b1"`
	ValveB2  string `yaml:"valve_b2"`
}

// Config is the full top-level configuration for an Instrument.
type Config struct {
	Ports Ports `yaml:"ports"`
	// Baud is the serial baud rate shared by every port; the instrument's
	// links all speak the same 8N1 ASCII protocol at a fixed rate.
	Baud int `yaml:"baud"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.Baud == 0 {
		c.Baud = 9600
	}
	return &c, nil
}
