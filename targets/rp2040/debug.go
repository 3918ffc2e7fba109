//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// debugUART carries diagnostics on GPIO0 (TX) and GPIO1 (RX) at 115200 baud.
// USB is reserved for the command protocol.
var debugUART *machine.UART

func InitDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}
	debugUART = uart
}

// DebugPrintln writes a line to the debug UART, if it came up
func DebugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
