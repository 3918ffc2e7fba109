// Package slice drives one RP2040 PWM slice as a core.PWMInstance.
//
// Both channels of a slice count against the same TOP, so they share one
// period. A period change is refused while the other channel is running at a
// different period; its compare value would otherwise describe the old
// period.
package slice

import (
	"errors"

	"sgpwm/core"
)

// Channels per slice (A and B)
const Channels = 2

const nsPerMicro = 1000

var (
	ErrNoChannel      = errors.New("no such PWM channel")
	ErrPulse          = errors.New("pulse exceeds period")
	ErrPeriodConflict = errors.New("slice period is in use by the other channel")
)

// Peripheral is the hardware slice. Configure programs the period in
// nanoseconds and enables the counter.
type Peripheral interface {
	Configure(periodNs uint64) error
	Top() uint32
	Set(channel uint8, value uint32)
	SetInverting(channel uint8, inverting bool)
}

// Slice tracks per-channel pulse widths so compare values are always
// derived from the current TOP.
type Slice struct {
	hw      Peripheral
	period  uint32 // µs, 0 before the first configuration
	pulse   [Channels]uint32
	running [Channels]bool
}

func New(hw Peripheral) *Slice {
	return &Slice{hw: hw}
}

// Stop drives the channel low. The counter keeps running for the other
// channel.
func (s *Slice) Stop(channel uint8) error {
	if channel >= Channels {
		return ErrNoChannel
	}
	s.hw.Set(channel, 0)
	s.running[channel] = false
	return nil
}

func (s *Slice) ConfigContinuous(channel uint8, period, pulse uint32, polarity core.Polarity) error {
	if channel >= Channels {
		return ErrNoChannel
	}
	if pulse > period {
		return ErrPulse
	}
	if period != s.period {
		if s.running[channel^1] {
			return ErrPeriodConflict
		}
		if err := s.hw.Configure(uint64(period) * nsPerMicro); err != nil {
			return err
		}
		s.period = period
	}
	s.hw.SetInverting(channel, polarity == core.PolarityLow)
	s.pulse[channel] = pulse
	return nil
}

func (s *Slice) Start(channel uint8) error {
	if channel >= Channels {
		return ErrNoChannel
	}
	s.hw.Set(channel, s.level(channel))
	s.running[channel] = true
	return nil
}

// Period returns the slice period in µs
func (s *Slice) Period() uint32 {
	return s.period
}

func (s *Slice) level(channel uint8) uint32 {
	if s.period == 0 {
		return 0
	}
	return uint32(uint64(s.hw.Top()) * uint64(s.pulse[channel]) / uint64(s.period))
}
