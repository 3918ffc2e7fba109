package sg200x

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// fmuxSelMask covers the function select bits of an FMUX register
const fmuxSelMask = 0x7

// Registers is 32-bit access to the FMUX register page
type Registers interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Pinmux routes SG200x pads by rewriting their FMUX function select field.
// It implements core.Muxer.
type Pinmux struct {
	regs   Registers
	pads   map[string]uint32
	logger *zap.SugaredLogger
}

// NewPinmux creates a Pinmux over regs using the built-in pad table
func NewPinmux(regs Registers, logger *zap.SugaredLogger) *Pinmux {
	return &Pinmux{regs: regs, pads: padRegisters, logger: logger}
}

// SetMux selects function fn on the pad called name
func (p *Pinmux) SetMux(name string, fn uint8) error {
	offset, ok := p.pads[name]
	if !ok {
		return errors.Errorf("unknown pad %q", name)
	}
	if fn > fmuxSelMask {
		return errors.Errorf("pad %s: function %d out of range", name, fn)
	}

	old := p.regs.Read32(offset)
	p.regs.Write32(offset, old&^fmuxSelMask|uint32(fn))
	p.logger.Debugf("pad %s fmux 0x%03x: %d -> %d", name, offset, old&fmuxSelMask, fn)
	return nil
}
