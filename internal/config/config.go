package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/cubeware/internal/layout"
	"github.com/coreman2200/cubeware/internal/led"
	"github.com/coreman2200/cubeware/internal/link"
)

// Idle trigger modes.
const (
	// TriggerLiteral fires after the timeout only if traffic was seen since
	// the last trigger.
	TriggerLiteral = "literal"
	// TriggerSilence fires after the timeout only if no traffic was seen since
	// the last trigger. Once a host has sent a byte it never fires again.
	TriggerSilence = "silence"
)

type I2C struct {
	Bus      string `yaml:"bus"`       // "" = first bus
	BaseAddr int    `yaml:"base_addr"` // chip 0 address, e.g. 0x60
	FreqKHz  int    `yaml:"freq_khz"`  // e.g. 800
}

type Rows struct {
	Pins []string `yaml:"pins"` // pins[z] drives layer z
}

type Serial struct {
	Path     string `yaml:"path"` // e.g. /dev/ttyAMA0; empty runs without host link
	Baud     int    `yaml:"baud"`
	Announce bool   `yaml:"announce"`
	Queue    int    `yaml:"queue"`
}

type Timing struct {
	UnitNS         int `yaml:"unit_ns"`
	StartupDelayMS int `yaml:"startup_delay_ms"`
	BlankUnits     int `yaml:"blank_units"`
}

type Controls struct {
	Exposure    *uint16 `yaml:"exposure,omitempty"`
	IdleEnabled *bool   `yaml:"idle_enabled,omitempty"`
	IdleTimeout *uint16 `yaml:"idle_timeout,omitempty"`
}

type Idle struct {
	Trigger string `yaml:"trigger"` // "literal" | "silence"
}

type Monitor struct {
	Addr            string `yaml:"addr"` // empty disables the monitor
	FrameIntervalMS int    `yaml:"frame_interval_ms"`
}

type Config struct {
	Side     int    `yaml:"side"`
	Driver   string `yaml:"driver"` // "i2c" | "sim"
	LogLevel string `yaml:"log_level"`

	// LogFile is a rotated JSON log written next to the console output.
	LogFile string `yaml:"log_file"`

	I2C      I2C      `yaml:"i2c"`
	Rows     Rows     `yaml:"rows"`
	Serial   Serial   `yaml:"serial"`
	Timing   Timing   `yaml:"timing"`
	Controls Controls `yaml:"controls"`
	Idle     Idle     `yaml:"idle"`
	Monitor  Monitor  `yaml:"monitor"`
}

// Default returns the reference configuration for an 8-cube on a Raspberry Pi.
func Default() *Config {
	enabled := true
	exposure, timeout := uint16(1000), uint16(4000)
	return &Config{
		Side:     layout.DefaultSide,
		Driver:   "sim",
		LogLevel: "info",
		I2C:      I2C{BaseAddr: led.DefaultBaseAddr, FreqKHz: 800},
		Rows: Rows{Pins: []string{
			"GPIO5", "GPIO6", "GPIO13", "GPIO19", "GPIO26", "GPIO16", "GPIO20", "GPIO21",
		}},
		Serial: Serial{Baud: link.DefaultBaud, Queue: link.DefaultQueue},
		Timing: Timing{UnitNS: 100, StartupDelayMS: 1000},
		Controls: Controls{
			Exposure:    &exposure,
			IdleEnabled: &enabled,
			IdleTimeout: &timeout,
		},
		Idle:    Idle{Trigger: TriggerLiteral},
		Monitor: Monitor{FrameIntervalMS: 50},
	}
}

// Normalize fills zero values from Default so partial files behave.
func (c *Config) Normalize() {
	d := Default()
	if c.Side == 0 {
		c.Side = d.Side
	}
	if c.Driver == "" {
		c.Driver = d.Driver
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.I2C.BaseAddr == 0 {
		c.I2C.BaseAddr = d.I2C.BaseAddr
	}
	if c.I2C.FreqKHz == 0 {
		c.I2C.FreqKHz = d.I2C.FreqKHz
	}
	if len(c.Rows.Pins) == 0 {
		c.Rows.Pins = d.Rows.Pins
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = d.Serial.Baud
	}
	if c.Serial.Queue == 0 {
		c.Serial.Queue = d.Serial.Queue
	}
	if c.Timing.UnitNS == 0 {
		c.Timing.UnitNS = d.Timing.UnitNS
	}
	if c.Controls.Exposure == nil {
		c.Controls.Exposure = d.Controls.Exposure
	}
	if c.Controls.IdleEnabled == nil {
		c.Controls.IdleEnabled = d.Controls.IdleEnabled
	}
	if c.Controls.IdleTimeout == nil {
		c.Controls.IdleTimeout = d.Controls.IdleTimeout
	}
	if c.Idle.Trigger == "" {
		c.Idle.Trigger = d.Idle.Trigger
	}
	if c.Monitor.FrameIntervalMS == 0 {
		c.Monitor.FrameIntervalMS = d.Monitor.FrameIntervalMS
	}
}

// Validate reports settings the device cannot start with.
func (c *Config) Validate() error {
	cube, err := layout.New(c.Side)
	if err != nil {
		return err
	}
	switch c.Driver {
	case "sim", "i2c":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.Driver == "i2c" && len(c.Rows.Pins) != cube.Side {
		return fmt.Errorf("rows.pins has %d pins, cube needs %d", len(c.Rows.Pins), cube.Side)
	}
	switch c.Idle.Trigger {
	case TriggerLiteral, TriggerSilence:
	default:
		return fmt.Errorf("unknown idle trigger %q", c.Idle.Trigger)
	}
	if c.Timing.UnitNS < 0 || c.Timing.StartupDelayMS < 0 || c.Timing.BlankUnits < 0 {
		return fmt.Errorf("timing values must not be negative")
	}
	if c.Timing.BlankUnits > math.MaxUint16 {
		return fmt.Errorf("timing.blank_units %d exceeds %d", c.Timing.BlankUnits, math.MaxUint16)
	}
	return nil
}

func (t Timing) Unit() time.Duration { return time.Duration(t.UnitNS) * time.Nanosecond }
func (t Timing) StartupDelay() time.Duration { return time.Duration(t.StartupDelayMS) * time.Millisecond }

func (m Monitor) FrameInterval() time.Duration {
	return time.Duration(m.FrameIntervalMS) * time.Millisecond
}

// Load reads path and normalizes it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.Normalize()
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
