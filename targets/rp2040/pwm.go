//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"sgpwm/core"
	"sgpwm/targets/rp2040/slice"
)

const (
	numSlices  = 8
	numGPIO    = 30
	pwmPinFunc = 4 // GPIO_FUNC_PWM
)

var (
	errNoSlice = errors.New("no such PWM slice")
	errNoPad   = errors.New("unknown pad")
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
	SetInverting(channel uint8, inverting bool)
}

// getPWMPeripheral returns the PWM peripheral for a given slice number
func getPWMPeripheral(slice uint8) pwmPeripheral {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	}
	return nil
}

// pwmPinMap lists every GPIO routed to a PWM slice. GPIO N drives slice
// (N>>1)&7, channel A for even and B for odd pins; the global index keeps
// four channels per slice so it decodes like the SG200x numbering.
// GPIO0 and GPIO1 carry the debug UART.
func pwmPinMap() core.PinMap {
	pins := make(core.PinMap, 0, numGPIO-2)
	for n := uint8(2); n < numGPIO; n++ {
		slice := (n >> 1) & 0x7
		pins = append(pins, core.PinMapEntry{
			Pin:  n,
			Name: "GPIO" + itoa(int(n)),
			Func: pwmPinFunc,
			Idx:  slice*core.ChannelsPerPeripheral + n&1,
			Caps: core.CapPWM | core.CapGPIO,
		})
	}
	return pins
}

// RP2040PinMux routes pads to their PWM slice
type RP2040PinMux struct {
	pads map[string]uint8
}

func NewRP2040PinMux(pins core.PinMap) *RP2040PinMux {
	m := &RP2040PinMux{pads: make(map[string]uint8, len(pins))}
	for _, p := range pins {
		m.pads[p.Name] = p.Pin
	}
	return m
}

// SetMux selects the PWM function for a pad. Channel() does the routing on
// the RP2040, so fn must be the PWM function.
func (m *RP2040PinMux) SetMux(name string, fn uint8) error {
	n, ok := m.pads[name]
	if !ok {
		return errNoPad
	}
	if fn != pwmPinFunc {
		return errors.New("only the PWM function can be selected")
	}
	_, err := getPWMPeripheral((n >> 1) & 0x7).Channel(machine.Pin(n))
	return err
}

// machineSlice adapts a TinyGo PWM group to slice.Peripheral
type machineSlice struct {
	pwmPeripheral
}

func (m machineSlice) Configure(periodNs uint64) error {
	return m.pwmPeripheral.Configure(machine.PWMConfig{Period: periodNs})
}

// RP2040PWMDriver implements core.PWMDriver over the 8 PWM slices.
// Period and pulse are in microseconds.
type RP2040PWMDriver struct {
	slices map[uint8]*slice.Slice
}

func NewRP2040PWMDriver() *RP2040PWMDriver {
	return &RP2040PWMDriver{slices: make(map[uint8]*slice.Slice)}
}

func (d *RP2040PWMDriver) Init(index uint8) (core.PWMInstance, error) {
	if index >= numSlices {
		return nil, errNoSlice
	}
	s, ok := d.slices[index]
	if !ok {
		s = slice.New(machineSlice{getPWMPeripheral(index)})
		d.slices[index] = s
	}
	return s, nil
}
