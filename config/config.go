// Package config holds the firmware and simulator settings
package config

import (
	"errors"

	"harpclock/harp"
	"harpclock/registers"
)

var (
	ErrBadBaud = errors.New("config: baud rate must be positive")
	ErrBadLead = errors.New("config: sync lead must be under one second")
)

// Config is the complete device configuration
type Config struct {
	Output    SerialConfig `yaml:"output"`
	Sync      SyncConfig   `yaml:"sync"`
	Registers SerialConfig `yaml:"registers"`
	Device    DeviceConfig `yaml:"device"`
	App       AppConfig    `yaml:"app"`
	Board     BoardConfig  `yaml:"board"`
	Debug     DebugConfig  `yaml:"debug"`
}

// SerialConfig names a serial port and its speed. Port is ignored on the
// board, where UARTs are fixed.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// SyncConfig configures the synchronization line and the clock bridge
type SyncConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	LeadUS        uint64 `yaml:"lead_us"`
	EstimateRate  bool   `yaml:"estimate_rate"`
	MaxPulseGapUS uint64 `yaml:"max_pulse_gap_us"`
}

// DeviceConfig is the identity reported through the core registers
type DeviceConfig struct {
	WhoAmI           uint16 `yaml:"who_am_i"`
	HwVersionMajor   uint8  `yaml:"hw_version_major"`
	HwVersionMinor   uint8  `yaml:"hw_version_minor"`
	AssemblyVersion  uint8  `yaml:"assembly_version"`
	HarpVersionMajor uint8  `yaml:"harp_version_major"`
	HarpVersionMinor uint8  `yaml:"harp_version_minor"`
	FwVersionMajor   uint8  `yaml:"fw_version_major"`
	FwVersionMinor   uint8  `yaml:"fw_version_minor"`
	SerialNumber     uint16 `yaml:"serial_number"`
	Name             string `yaml:"name"`
}

// AppConfig seeds the application registers
type AppConfig struct {
	TestByte uint8  `yaml:"test_byte"`
	TestUint uint32 `yaml:"test_uint"`
}

// BoardConfig selects board-level hardware
type BoardConfig struct {
	// PIOOutput sends frames through a PIO state machine instead of UART0,
	// so the broadcast handler never waits on the UART
	PIOOutput bool  `yaml:"pio_output"`
	OutputPin uint8 `yaml:"output_pin"`
	SyncRxPin uint8 `yaml:"sync_rx_pin"`
	LEDPin    int   `yaml:"led_pin"` // ws2812 data pin, negative disables
}

// DebugConfig controls debug output
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

// Default returns the configuration the firmware boots with
func Default() *Config {
	cfg := &Config{
		Device: DeviceConfig{
			WhoAmI:       1234,
			SerialNumber: 0xCAFE,
			Name:         "Example C App",
		},
		Board: BoardConfig{
			OutputPin: 0,
			SyncRxPin: 5,
			LEDPin:    16,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in zero values
func applyDefaults(cfg *Config) {
	if cfg.Output.Baud == 0 {
		cfg.Output.Baud = 115200
	}
	if cfg.Sync.Baud == 0 {
		cfg.Sync.Baud = harp.SyncBaudRate
	}
	if cfg.Sync.LeadUS == 0 {
		cfg.Sync.LeadUS = harp.DefaultLeadUS
	}
	if cfg.Sync.MaxPulseGapUS == 0 {
		cfg.Sync.MaxPulseGapUS = 3000000
	}
	if cfg.Registers.Baud == 0 {
		cfg.Registers.Baud = 1000000
	}
	if cfg.Device.Name == "" {
		cfg.Device.Name = "harpclock"
	}
	if len(cfg.Device.Name) > registers.DeviceNameSize-1 {
		cfg.Device.Name = cfg.Device.Name[:registers.DeviceNameSize-1]
	}
	if cfg.Debug.Level == "" {
		cfg.Debug.Level = "info"
	}
}

// BridgeOptions returns the clock bridge settings
func (c *Config) BridgeOptions() harp.BridgeOptions {
	return harp.BridgeOptions{
		EstimateRate:  c.Sync.EstimateRate,
		MaxPulseGapUS: c.Sync.MaxPulseGapUS,
	}
}

// Identity returns the register identity
func (c *Config) Identity() registers.Identity {
	return registers.Identity{
		WhoAmI:           c.Device.WhoAmI,
		HwVersionMajor:   c.Device.HwVersionMajor,
		HwVersionMinor:   c.Device.HwVersionMinor,
		AssemblyVersion:  c.Device.AssemblyVersion,
		CoreVersionMajor: c.Device.HarpVersionMajor,
		CoreVersionMinor: c.Device.HarpVersionMinor,
		FwVersionMajor:   c.Device.FwVersionMajor,
		FwVersionMinor:   c.Device.FwVersionMinor,
		SerialNumber:     c.Device.SerialNumber,
		Name:             c.Device.Name,
	}
}

// AppDefaults returns the application register seeds
func (c *Config) AppDefaults() registers.AppDefaults {
	return registers.AppDefaults{
		TestByte: c.App.TestByte,
		TestUint: c.App.TestUint,
	}
}

// Validate rejects settings the firmware cannot run with
func (c *Config) Validate() error {
	if c.Output.Baud <= 0 || c.Sync.Baud <= 0 || c.Registers.Baud <= 0 {
		return ErrBadBaud
	}
	if c.Sync.LeadUS >= 1000000 {
		return ErrBadLead
	}
	return nil
}
