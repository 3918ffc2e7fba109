package core

// Polarity selects the active level of a PWM output.
type Polarity uint8

const (
	PolarityHigh Polarity = iota // Output is high for the pulse duration
	PolarityLow
)

// Muxer routes a physical pad to one of its internal functions.
// Platform-specific implementations handle the actual pinmux registers.
type Muxer interface {
	// SetMux selects function code fn on the pad called name
	SetMux(name string, fn uint8) error
}

// PWMDriver is the abstract chip-support interface for a PWM hardware block.
type PWMDriver interface {
	// Init acquires and initializes the peripheral instance for index.
	// Calling Init again for the same index returns a usable instance.
	Init(index uint8) (PWMInstance, error)
}

// PWMInstance is one initialized PWM peripheral with several output channels.
// Period and pulse are in the backend's native time unit.
type PWMInstance interface {
	// Stop halts output on channel. Stopping an idle channel is not an error.
	Stop(channel uint8) error

	// ConfigContinuous programs channel for continuous output
	ConfigContinuous(channel uint8, period, pulse uint32, polarity Polarity) error

	// Start enables output on channel with its last programmed configuration
	Start(channel uint8) error
}
