// PWM (Pulse Width Modulation) output programming
// Maps logical pins to PWM peripheral channels and sequences the driver calls
// needed to change a running signal without glitches.
package core

import (
	"go.uber.org/multierr"
)

// Handle is the peripheral instance most recently initialized by a Controller
type Handle struct {
	Index    uint8 // PWM peripheral index
	Channel  uint8 // Output channel within the peripheral
	Instance PWMInstance
}

type channelKey struct {
	index   uint8
	channel uint8
}

// Controller owns the PWM peripherals reachable through one pin map.
// It is not safe for concurrent use; callers serialize access.
type Controller struct {
	pins   PinMap
	mux    Muxer
	driver PWMDriver
	logger Logger

	// Last successfully initialized instance and its channel
	active    Handle
	hasActive bool
	channel   int

	// Channel ownership: a channel is claimed by the first pin that
	// configures it and stays claimed until Release or Close
	owners    map[channelKey]uint8
	claimed   map[uint8]channelKey
	instances map[uint8]PWMInstance
}

// NewController creates a controller. A nil logger discards diagnostics.
func NewController(pins PinMap, mux Muxer, driver PWMDriver, logger Logger) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{
		pins:      pins,
		mux:       mux,
		driver:    driver,
		logger:    logger,
		channel:   -1,
		owners:    make(map[channelKey]uint8),
		claimed:   make(map[uint8]channelKey),
		instances: make(map[uint8]PWMInstance),
	}
}

// SetPWM drives pin with a pulse of width pulse every period. Both values are
// in the driver's native time unit.
//
// The channel is first run at the new period with zero duty and stopped again
// before the real duty is applied, so a stale duty never appears at the new
// period. Every failure is logged once with the pin number and returned as an
// *Error.
func (c *Controller) SetPWM(pin uint8, pulse, period uint32) error {
	entry, ok := c.pins.Resolve(pin)
	if !ok {
		c.logger.Errorf("pin GPIO %d is not used as PWM func", pin)
		return &Error{Pin: pin, Kind: KindPinNotFound}
	}

	index, channel := Decode(entry.Idx)
	key := channelKey{index: index, channel: channel}
	if owner, taken := c.owners[key]; taken && owner != pin {
		c.logger.Errorf("pin GPIO %d: PWM%d channel %d is owned by pin GPIO %d", pin, index, channel, owner)
		return &Error{Pin: pin, Kind: KindChannelBusy}
	}

	if err := c.mux.SetMux(entry.Name, entry.Func); err != nil {
		c.logger.Errorf("pin GPIO %d fails to config as PWM func: %v", pin, err)
		return &Error{Pin: pin, Kind: KindMux, Err: err}
	}

	inst, err := c.driver.Init(index)
	if err != nil {
		c.logger.Errorf("GPIO pin %d init failed: %v", pin, err)
		return &Error{Pin: pin, Kind: KindInit, Err: err}
	}
	c.active = Handle{Index: index, Channel: channel, Instance: inst}
	c.hasActive = true
	c.channel = int(channel)
	c.instances[index] = inst
	c.owners[key] = pin
	c.claimed[pin] = key

	if err := program(inst, channel, pulse, period); err != nil {
		c.logger.Errorf("GPIO pin %d PWM programming failed: %v", pin, err)
		return &Error{Pin: pin, Kind: KindProgram, Err: err}
	}

	c.logger.Debugf("pin GPIO %d: PWM%d channel %d period=%d pulse=%d", pin, index, channel, period, pulse)
	return nil
}

// program runs the two-phase stop/configure/start sequence on one channel
func program(inst PWMInstance, channel uint8, pulse, period uint32) error {
	// Phase 1: clear any stale duty at the new period
	if err := inst.Stop(channel); err != nil {
		return err
	}
	if err := inst.ConfigContinuous(channel, period, 0, PolarityHigh); err != nil {
		return err
	}
	if err := inst.Start(channel); err != nil {
		return err
	}

	// Phase 2: apply the requested pulse
	if err := inst.Stop(channel); err != nil {
		return err
	}
	if err := inst.ConfigContinuous(channel, period, pulse, PolarityHigh); err != nil {
		return err
	}
	return inst.Start(channel)
}

// DutyPulse converts value out of max into a pulse width for period.
// Values above max are clamped; a zero max yields a zero pulse.
func DutyPulse(value, max, period uint32) uint32 {
	if max == 0 {
		return 0
	}
	if value > max {
		value = max
	}
	return uint32(uint64(period) * uint64(value) / uint64(max))
}

// WriteDuty is the analog-write style entry point: value out of max is
// converted to a pulse width for period.
func (c *Controller) WriteDuty(pin uint8, value, max, period uint32) error {
	return c.SetPWM(pin, DutyPulse(value, max, period), period)
}

// Release stops the output of pin's channel and frees the channel for other
// pins. It works without a prior SetPWM in this process, so a channel left
// running by an earlier run can be stopped.
func (c *Controller) Release(pin uint8) error {
	entry, ok := c.pins.Resolve(pin)
	if !ok {
		c.logger.Errorf("pin GPIO %d is not used as PWM func", pin)
		return &Error{Pin: pin, Kind: KindPinNotFound}
	}
	index, channel := Decode(entry.Idx)
	key := channelKey{index: index, channel: channel}
	if owner, taken := c.owners[key]; taken && owner != pin {
		c.logger.Errorf("pin GPIO %d: PWM%d channel %d is owned by pin GPIO %d", pin, index, channel, owner)
		return &Error{Pin: pin, Kind: KindChannelBusy}
	}

	inst, ok := c.instances[index]
	if !ok {
		var err error
		if inst, err = c.driver.Init(index); err != nil {
			c.logger.Errorf("GPIO pin %d init failed: %v", pin, err)
			return &Error{Pin: pin, Kind: KindInit, Err: err}
		}
		c.instances[index] = inst
	}

	delete(c.claimed, pin)
	delete(c.owners, key)
	if err := inst.Stop(channel); err != nil {
		c.logger.Errorf("GPIO pin %d PWM stop failed: %v", pin, err)
		return &Error{Pin: pin, Kind: KindProgram, Err: err}
	}
	return nil
}

// Close stops every owned channel and drops all claims
func (c *Controller) Close() error {
	var err error
	for pin := range c.claimed {
		err = multierr.Append(err, c.Release(pin))
	}
	c.hasActive = false
	c.channel = -1
	return err
}

// Active returns the most recently initialized peripheral handle.
// It reports false before the first successful initialization.
func (c *Controller) Active() (Handle, bool) {
	return c.active, c.hasActive
}

// Channel returns the channel of the last initialized peripheral, or -1
func (c *Controller) Channel() int {
	return c.channel
}

// Owner returns the pin currently owning the given peripheral channel
func (c *Controller) Owner(index, channel uint8) (uint8, bool) {
	pin, ok := c.owners[channelKey{index: index, channel: channel}]
	return pin, ok
}

// Pins returns the pin map this controller resolves against
func (c *Controller) Pins() PinMap {
	return c.pins
}
