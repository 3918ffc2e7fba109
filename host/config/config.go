// Package config loads the host tool configuration
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"sgpwm/core"
	"sgpwm/host/serial"
)

// Backends
const (
	BackendLocal  = "local"  // Drive this board's PWM through sysfs and /dev/mem
	BackendSerial = "serial" // Forward commands to firmware over a serial link
)

// Config is the host tool configuration file
type Config struct {
	Backend  string        `yaml:"backend"`
	LogLevel string        `yaml:"log_level"`
	Serial   serial.Config `yaml:"serial"`
	Sysfs    SysfsConfig   `yaml:"sysfs"`

	// Pins override or extend the board's built-in pin table
	Pins []PinConfig `yaml:"pins"`
}

// SysfsConfig locates the Linux PWM class directory
type SysfsConfig struct {
	Root string `yaml:"root"`
}

// PinConfig is one pin map entry in the configuration file
type PinConfig struct {
	Pin   uint8  `yaml:"pin"`
	Pad   string `yaml:"pad"`
	Func  uint8  `yaml:"func"`
	Index uint8  `yaml:"index"` // Global PWM number: block = index/4, channel = index%4
	GPIO  bool   `yaml:"gpio"`  // Pad can also be used as plain GPIO
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendLocal
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	def := serial.DefaultConfig(serial.DefaultDevice)
	if cfg.Serial.Device == "" {
		cfg.Serial.Device = def.Device
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = def.Baud
	}
	if cfg.Serial.ReadTimeout == 0 {
		cfg.Serial.ReadTimeout = def.ReadTimeout
	}
}

// Validate checks values that defaults cannot fix
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendSerial:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}

	seen := make(map[uint8]bool)
	for _, p := range c.Pins {
		if p.Pad == "" {
			return errors.Errorf("pin %d: pad is required", p.Pin)
		}
		if seen[p.Pin] {
			return errors.Errorf("pin %d listed twice", p.Pin)
		}
		seen[p.Pin] = true
	}
	return nil
}

// PinMap applies the configured pins on top of base. An entry replaces the
// base entry with the same pin; other entries are appended.
func (c *Config) PinMap(base core.PinMap) core.PinMap {
	pins := append(core.PinMap(nil), base...)
	for _, p := range c.Pins {
		entry := core.PinMapEntry{Pin: p.Pin, Name: p.Pad, Func: p.Func, Idx: p.Index, Caps: core.CapPWM}
		if p.GPIO {
			entry.Caps |= core.CapGPIO
		}

		replaced := false
		for i := range pins {
			if pins[i].Pin == p.Pin {
				pins[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			pins = append(pins, entry)
		}
	}
	return pins
}

// NewLogger builds the console logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
