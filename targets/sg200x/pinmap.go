// Package sg200x drives the PWM blocks of SG2000/SG2002 SoCs (Milk-V Duo)
// from Linux: pads are routed through the FMUX registers over /dev/mem and
// channels are programmed through /sys/class/pwm.
package sg200x

import "sgpwm/core"

// FMUX function codes routing a pad to its PWM output
const (
	funcSD1PWM   = 2
	funcUART0PWM = 2
)

// duoPins is the PWM pin table of the Milk-V Duo header. Idx is the global
// PWM number, so Idx/4 selects the block and Idx%4 its channel.
var duoPins = core.PinMap{
	{Pin: 4, Name: "SD1_D2", Func: funcSD1PWM, Idx: 5, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 5, Name: "SD1_D1", Func: funcSD1PWM, Idx: 6, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 6, Name: "SD1_CLK", Func: funcSD1PWM, Idx: 9, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 7, Name: "SD1_CMD", Func: funcSD1PWM, Idx: 8, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 8, Name: "SD1_D0", Func: funcSD1PWM, Idx: 7, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 9, Name: "SD1_D3", Func: funcSD1PWM, Idx: 4, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 12, Name: "UART0_TX", Func: funcUART0PWM, Idx: 4, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 13, Name: "UART0_RX", Func: funcUART0PWM, Idx: 5, Caps: core.CapPWM | core.CapGPIO},
	{Pin: 14, Name: "SD1_GPIO0", Idx: 0xFF, Caps: core.CapGPIO},
	{Pin: 15, Name: "SD1_GPIO1", Idx: 0xFF, Caps: core.CapGPIO},
}

// PinMap returns a copy of the Milk-V Duo PWM pin table
func PinMap() core.PinMap {
	return append(core.PinMap(nil), duoPins...)
}

// fmuxBase is the physical address of the FMUX register page
const fmuxBase = 0x03001000

// padRegisters maps pad names to FMUX register offsets from fmuxBase
var padRegisters = map[string]uint32{
	"UART0_TX":  0x040,
	"UART0_RX":  0x044,
	"SD1_GPIO1": 0x088,
	"SD1_GPIO0": 0x08C,
	"SD1_D3":    0x0D0,
	"SD1_D2":    0x0D4,
	"SD1_D1":    0x0D8,
	"SD1_D0":    0x0DC,
	"SD1_CMD":   0x0E0,
	"SD1_CLK":   0x0E4,
}
