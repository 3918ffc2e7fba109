//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// machine.Serial is the USB CDC-ACM port; TinyGo's runtime sets the
// descriptors.

func InitUSB() error {
	return machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes waiting to be read
func USBAvailable() int {
	return machine.Serial.Buffered()
}

func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes data, possibly partially
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
