package core

// Capability marks which peripheral functions a pin map entry can be routed to.
type Capability uint8

const (
	CapPWM Capability = 1 << iota
	CapGPIO
)

// PinMapEntry describes how a logical board pin reaches a PWM channel
type PinMapEntry struct {
	Pin  uint8      // Board-level logical pin number
	Name string     // Pad name passed to the Muxer
	Func uint8      // Mux function code selecting PWM on the pad
	Idx  uint8      // Opaque index: peripheral = Idx / 4, channel = Idx % 4
	Caps Capability // Capabilities of this entry
}

// PinMap is a read-only table of pin descriptors.
type PinMap []PinMapEntry

// ChannelsPerPeripheral is the number of outputs in one PWM block
const ChannelsPerPeripheral = 4

// Resolve finds the descriptor for pin. It reports false when the pin is
// absent or is not assigned the PWM capability.
func (m PinMap) Resolve(pin uint8) (PinMapEntry, bool) {
	for _, e := range m {
		if e.Pin != pin {
			continue
		}
		if e.Caps&CapPWM == 0 {
			return PinMapEntry{}, false
		}
		return e, true
	}
	return PinMapEntry{}, false
}

// PWMPins returns the logical pin numbers usable for PWM, in table order
func (m PinMap) PWMPins() []uint8 {
	var pins []uint8
	for _, e := range m {
		if e.Caps&CapPWM != 0 {
			pins = append(pins, e.Pin)
		}
	}
	return pins
}

// Decode splits an opaque descriptor index into peripheral index and channel.
func Decode(idx uint8) (index, channel uint8) {
	return idx >> 2, idx & 0x3
}
