package core

import (
	"errors"

	"sgpwm/protocol"
)

// Wire names of the PWM commands
const (
	CmdSetPWM     = "set_pwm"
	CmdReleasePWM = "release_pwm"
	RespPWMStatus = "pwm_status"
)

// StatusOK is the pwm_status result for a successful command; any other
// value is an ErrorKind.
const StatusOK = 0

const maxPin = 0xFF

// ErrNoController is returned by PWM command handlers registered without a controller
var ErrNoController = errors.New("no PWM controller attached")

// Responder sends a response frame back to the host
type Responder func(cmdID uint16, args func(output protocol.OutputBuffer))

// RegisterPWMCommands registers the PWM commands in a fixed order.
// The host registers with a nil controller only to learn the IDs.
func RegisterPWMCommands(r *CommandRegistry, ctrl *Controller, respond Responder) {
	statusID := r.RegisterResponse(RespPWMStatus, "pin=%u result=%c")

	sendStatus := func(pin uint32, err error) {
		if respond == nil {
			return
		}
		result := uint32(KindOf(err))
		respond(statusID, func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, pin)
			protocol.EncodeVLQUint(output, result)
		})
	}

	// Pin numbers are 8 bits; wider wire values must not alias a real pin
	pinInRange := func(pin uint32) bool {
		if pin <= maxPin {
			return true
		}
		ctrl.logger.Errorf("pin GPIO %d is not used as PWM func", pin)
		sendStatus(pin, &Error{Kind: KindPinNotFound})
		return false
	}

	// Format: set_pwm pin=%u pulse=%u period=%u
	r.Register(CmdSetPWM, "pin=%u pulse=%u period=%u", func(data *[]byte) error {
		pin, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		pulse, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		period, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if ctrl == nil {
			return ErrNoController
		}
		if !pinInRange(pin) {
			return nil
		}

		// Failures are already logged by the controller; report them and
		// keep processing the frame
		sendStatus(pin, ctrl.SetPWM(uint8(pin), pulse, period))
		return nil
	})

	// Format: release_pwm pin=%u
	r.Register(CmdReleasePWM, "pin=%u", func(data *[]byte) error {
		pin, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if ctrl == nil {
			return ErrNoController
		}
		if !pinInRange(pin) {
			return nil
		}
		sendStatus(pin, ctrl.Release(uint8(pin)))
		return nil
	})
}
