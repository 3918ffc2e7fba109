// Package serial opens the link to PWM firmware
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Firmware link defaults. USB CDC ignores the baud rate.
const (
	DefaultDevice        = "/dev/ttyACM0"
	DefaultBaud          = 250000
	DefaultReadTimeoutMs = 100
)

// Port is an open firmware link. Flush discards unread input so a reply from
// an earlier session is never taken as an ACK.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config is the serial section of the host configuration
type Config struct {
	Device      string `yaml:"device"`
	Baud        int    `yaml:"baud"`
	ReadTimeout int    `yaml:"read_timeout_ms"` // 0 blocks
}

func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeoutMs,
	}
}

// Timeout is ReadTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Millisecond
}

// Open opens cfg.Device with tarm/serial
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("no serial device configured")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.Timeout(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}
	return port, nil
}
