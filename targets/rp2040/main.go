//go:build rp2040 || rp2350

// Firmware that executes set_pwm/release_pwm commands received over USB.
package main

import (
	"machine"
	"time"

	"sgpwm/core"
	"sgpwm/protocol"
)

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32

	// USB connection state tracking
	lastUSBActivity          uint64 // Last successful read, µs
	lastWriteSuccess         uint64 // Last complete write, µs
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	if err := InitUSB(); err != nil {
		return
	}
	InitDebugUART()
	logger := &core.DebugLogger{Write: DebugPrintln}

	pins := pwmPinMap()
	ctrl := core.NewController(pins, NewRP2040PinMux(pins), NewRP2040PWMDriver(), logger)
	registry := core.NewCommandRegistry()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, registry.Dispatch)
	transport.SetResetCallback(func() {
		// Outputs keep running across host sessions
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// Each frame's responses and its ACK are flushed together
	transport.SetFlushCallback(writeUSB)
	core.RegisterPWMCommands(registry, ctrl, transport.SendCommand)

	DebugPrintln("[PWM] ready, " + itoa(registry.Count()) + " commands")

	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				originalLen := len(data)
				inputBuf := protocol.NewSliceInputBuffer(data)

				transport.Receive(inputBuf)
				messagesReceived++

				// Remove consumed bytes from FIFO
				if consumed := originalLen - inputBuf.Available(); consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
				messagesSent++
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop moves USB bytes into the input FIFO
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// Fresh connection after a disconnect
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}
			lastUSBActivity = GetHardwareUptime()

			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB drains the output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Likely disconnected; drop stale data after repeated failures
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	if written > 0 {
		consecutiveWriteFailures = 0
		lastWriteSuccess = GetHardwareUptime()
		outputBuffer.Reset()
	}
}

// itoa converts int to string without importing strconv
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
