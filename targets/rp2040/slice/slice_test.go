package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgpwm/core"
)

// fakeSlice models TOP as one count per µs of period
type fakeSlice struct {
	top        uint32
	configures int
	values     [Channels]uint32
	inverted   [Channels]bool
}

func (f *fakeSlice) Configure(periodNs uint64) error {
	f.top = uint32(periodNs / nsPerMicro)
	f.configures++
	return nil
}

func (f *fakeSlice) Top() uint32                                { return f.top }
func (f *fakeSlice) Set(channel uint8, value uint32)            { f.values[channel] = value }
func (f *fakeSlice) SetInverting(channel uint8, inverting bool) { f.inverted[channel] = inverting }

type nopMux struct{}

func (nopMux) SetMux(string, uint8) error { return nil }

type sliceDriver struct{ s *Slice }

func (d sliceDriver) Init(uint8) (core.PWMInstance, error) { return d.s, nil }

func newSliceController(hw *fakeSlice) *core.Controller {
	pins := core.PinMap{
		{Pin: 2, Name: "GPIO2", Func: 4, Idx: 4, Caps: core.CapPWM},
		{Pin: 3, Name: "GPIO3", Func: 4, Idx: 5, Caps: core.CapPWM},
	}
	return core.NewController(pins, nopMux{}, sliceDriver{s: New(hw)}, nil)
}

func TestSliceSetPWM(t *testing.T) {
	hw := &fakeSlice{}
	ctrl := newSliceController(hw)

	require.NoError(t, ctrl.SetPWM(2, 1000, 20000))
	assert.Equal(t, uint32(1000), hw.values[0])
	assert.Equal(t, 1, hw.configures, "period programmed once")
	assert.False(t, hw.inverted[0])
}

func TestSlicePeriodConflict(t *testing.T) {
	hw := &fakeSlice{}
	ctrl := newSliceController(hw)
	require.NoError(t, ctrl.SetPWM(2, 1000, 20000))

	// Channel B may not retime the slice under a running channel A
	err := ctrl.SetPWM(3, 500, 10000)
	assert.Equal(t, core.KindProgram, core.KindOf(err))
	assert.Equal(t, uint32(20000), hw.top)
	assert.Equal(t, uint32(1000), hw.values[0], "channel A untouched")

	// Same period is fine
	require.NoError(t, ctrl.SetPWM(3, 500, 20000))
	assert.Equal(t, uint32(500), hw.values[1])
	assert.Equal(t, uint32(1000), hw.values[0])
}

func TestSlicePeriodChangeAfterRelease(t *testing.T) {
	hw := &fakeSlice{}
	ctrl := newSliceController(hw)
	require.NoError(t, ctrl.SetPWM(2, 1000, 20000))
	require.NoError(t, ctrl.Release(2))

	require.NoError(t, ctrl.SetPWM(3, 500, 10000))
	assert.Equal(t, uint32(10000), hw.top)
	assert.Equal(t, uint32(500), hw.values[1])
	assert.Equal(t, uint32(0), hw.values[0])

	// The owner of a channel may retime the slice when it is alone
	require.NoError(t, ctrl.SetPWM(3, 1500, 5000))
	assert.Equal(t, uint32(1500), hw.values[1])
}

func TestSliceLevelFollowsTop(t *testing.T) {
	hw := &fakeSlice{}
	s := New(hw)
	require.NoError(t, s.ConfigContinuous(0, 20000, 1000, core.PolarityLow))
	// Hardware rounding leaves a smaller TOP than the period asks for
	hw.top = 10000
	require.NoError(t, s.Start(0))
	assert.Equal(t, uint32(500), hw.values[0])
	assert.True(t, hw.inverted[0])

	assert.ErrorIs(t, s.ConfigContinuous(1, 100, 200, core.PolarityHigh), ErrPulse)
	assert.ErrorIs(t, s.Start(2), ErrNoChannel)
}
