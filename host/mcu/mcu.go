// Package mcu is the host-side client for PWM firmware reached over serial
package mcu

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sgpwm/core"
	"sgpwm/host/serial"
	"sgpwm/protocol"
)

// DefaultResponseTimeout bounds the wait for a pwm_status reply
const DefaultResponseTimeout = time.Second

// MCU sends PWM commands to firmware and waits for their status
type MCU struct {
	transport *protocol.HostTransport
	logger    *zap.SugaredLogger

	setID, releaseID, statusID uint16

	ResponseTimeout time.Duration
}

// Connect opens the serial port described by cfg
func Connect(cfg *serial.Config, logger *zap.SugaredLogger) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to flush serial port")
	}
	return New(port, logger), nil
}

// New wraps an already open link
func New(port io.ReadWriteCloser, logger *zap.SugaredLogger) *MCU {
	// Command IDs follow registration order, identical to the firmware's
	registry := core.NewCommandRegistry()
	core.RegisterPWMCommands(registry, nil, nil)
	setID, _ := registry.Lookup(core.CmdSetPWM)
	releaseID, _ := registry.Lookup(core.CmdReleasePWM)
	statusID, _ := registry.Lookup(core.RespPWMStatus)
	logger.Debugw("command dictionary", "commands", registry.Dictionary())

	return &MCU{
		transport:       protocol.NewHostTransport(port),
		logger:          logger,
		setID:           setID,
		releaseID:       releaseID,
		statusID:        statusID,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// SetPWM asks the firmware to drive pin with pulse every period.
// Firmware-side failures come back as *core.Error.
func (m *MCU) SetPWM(pin uint8, pulse, period uint32) error {
	err := m.send(m.setID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(pin))
		protocol.EncodeVLQUint(output, pulse)
		protocol.EncodeVLQUint(output, period)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to send %s", core.CmdSetPWM)
	}
	return m.awaitStatus(pin)
}

// Release asks the firmware to stop pin and free its channel
func (m *MCU) Release(pin uint8) error {
	err := m.send(m.releaseID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(pin))
	})
	if err != nil {
		return errors.Wrapf(err, "failed to send %s", core.CmdReleasePWM)
	}
	return m.awaitStatus(pin)
}

// send drops stale responses so the next pwm_status read belongs to this
// command, then sends it
func (m *MCU) send(id uint16, args func(output protocol.OutputBuffer)) error {
	if n := m.transport.DiscardResponses(); n > 0 {
		m.logger.Debugw("dropped stale responses", "count", n)
	}
	return m.transport.SendCommand(id, args)
}

// awaitStatus waits for the pwm_status of pin, skipping unrelated responses
func (m *MCU) awaitStatus(pin uint8) error {
	deadline := time.Now().Add(m.ResponseTimeout)
	for {
		resp, err := m.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return errors.Wrapf(err, "no %s for pin %d", core.RespPWMStatus, pin)
		}

		payload := resp.Payload
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil || uint16(id) != m.statusID {
			m.logger.Debugw("skipping response", "id", id)
			continue
		}
		gotPin, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return errors.Wrap(err, "malformed pwm_status")
		}
		result, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return errors.Wrap(err, "malformed pwm_status")
		}
		if gotPin != uint32(pin) {
			m.logger.Debugw("skipping stale status", "pin", gotPin)
			continue
		}

		if result != core.StatusOK {
			return &core.Error{Pin: pin, Kind: core.ErrorKind(result)}
		}
		return nil
	}
}

// Close shuts down the transport and the port
func (m *MCU) Close() error {
	return m.transport.Close()
}
