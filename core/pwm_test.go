package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	for raw := 0; raw <= 255; raw++ {
		index, channel := Decode(uint8(raw))
		assert.Equal(t, uint8(raw/4), index, "index for raw %d", raw)
		assert.Equal(t, uint8(raw%4), channel, "channel for raw %d", raw)
	}
}

func TestSetPWMSequence(t *testing.T) {
	ctrl, hw, log := newTestController()

	require.NoError(t, ctrl.SetPWM(4, 1500, 20000))

	// Idx 5 decodes to PWM1 channel 1
	expected := []call{
		{Op: "mux:SD1_D2/2"},
		{Op: "init", Index: 1},
		{Op: "stop", Index: 1, Channel: 1},
		{Op: "config", Index: 1, Channel: 1, Period: 20000, Pulse: 0},
		{Op: "start", Index: 1, Channel: 1},
		{Op: "stop", Index: 1, Channel: 1},
		{Op: "config", Index: 1, Channel: 1, Period: 20000, Pulse: 1500},
		{Op: "start", Index: 1, Channel: 1},
	}
	assert.Equal(t, expected, hw.calls)
	assert.Empty(t, log.errors)

	h, ok := ctrl.Active()
	require.True(t, ok)
	assert.Equal(t, uint8(1), h.Index)
	assert.Equal(t, uint8(1), h.Channel)
	assert.NotNil(t, h.Instance)
	assert.Equal(t, 1, ctrl.Channel())
}

func TestSetPWMUnknownPin(t *testing.T) {
	for _, pin := range []uint8{0, 14, 99} {
		ctrl, hw, log := newTestController()

		err := ctrl.SetPWM(pin, 1000, 20000)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPinNotFound))
		assert.Equal(t, KindPinNotFound, KindOf(err))

		assert.Empty(t, hw.calls, "no hardware access for pin %d", pin)
		require.Len(t, log.errors, 1)
		assert.Contains(t, log.errors[0], "GPIO "+itoa(int(pin))+" ")

		_, ok := ctrl.Active()
		assert.False(t, ok)
		assert.Equal(t, -1, ctrl.Channel())
	}
}

func TestSetPWMMuxFailure(t *testing.T) {
	ctrl, hw, log := newTestController()
	muxErr := errors.New("register write failed")
	hw.muxErr = muxErr

	err := ctrl.SetPWM(5, 1000, 20000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMux))
	assert.True(t, errors.Is(err, muxErr))

	assert.Equal(t, []string{"mux:SD1_D1/2"}, hw.ops(), "init must not be attempted")
	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "pin GPIO 5 fails to config as PWM func")

	_, owned := ctrl.Owner(1, 2)
	assert.False(t, owned)
}

func TestSetPWMInitFailure(t *testing.T) {
	ctrl, hw, log := newTestController()
	hw.initErr = errors.New("no such pwmchip")

	err := ctrl.SetPWM(6, 1000, 20000)
	require.Error(t, err)
	assert.Equal(t, KindInit, KindOf(err))
	assert.Equal(t, []string{"mux:SD1_CLK/2", "init"}, hw.ops())
	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "GPIO pin 6 init failed")

	_, ok := ctrl.Active()
	assert.False(t, ok)
}

func TestSetPWMProgramFailure(t *testing.T) {
	ctrl, hw, log := newTestController()
	hw.startErr = errors.New("enable rejected")

	err := ctrl.SetPWM(4, 1000, 20000)
	require.Error(t, err)
	assert.Equal(t, KindProgram, KindOf(err))
	assert.Len(t, log.errors, 1)

	// The pin still owns the channel so it can be released
	owner, ok := ctrl.Owner(1, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(4), owner)
}

func TestSetPWMNoGlitchAcrossPeriods(t *testing.T) {
	ctrl, hw, _ := newTestController()

	steps := []struct{ pulse, period uint32 }{
		{1500, 20000},
		{2500, 3000},
		{900, 10000},
		{9000, 10000},
		{100, 2000},
	}
	for _, s := range steps {
		before := len(hw.emitted[[2]uint8{1, 1}])
		require.NoError(t, ctrl.SetPWM(4, s.pulse, s.period))

		for _, out := range hw.emitted[[2]uint8{1, 1}][before:] {
			assert.Equal(t, s.period, out.Period)
			assert.Contains(t, []uint32{0, s.pulse}, out.Pulse,
				"running with pulse %d at period %d", out.Pulse, out.Period)
		}
		last := hw.emitted[[2]uint8{1, 1}]
		assert.Equal(t, output{Period: s.period, Pulse: s.pulse}, last[len(last)-1])
	}
}

func TestSetPWMChannelOwnership(t *testing.T) {
	ctrl, hw, log := newTestController()

	require.NoError(t, ctrl.SetPWM(4, 1000, 20000))
	calls := len(hw.calls)

	// Pin 20 decodes to the same PWM1 channel 1
	err := ctrl.SetPWM(20, 1000, 20000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChannelBusy))
	assert.Len(t, hw.calls, calls, "busy channel must not touch hardware")
	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "owned by pin GPIO 4")

	// The owner may reprogram freely
	require.NoError(t, ctrl.SetPWM(4, 2000, 20000))

	require.NoError(t, ctrl.Release(4))
	assert.Equal(t, "stop", hw.calls[len(hw.calls)-1].Op)
	require.NoError(t, ctrl.SetPWM(20, 1000, 20000))

	owner, ok := ctrl.Owner(1, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(20), owner)
}

func TestReleaseWithoutSet(t *testing.T) {
	ctrl, hw, log := newTestController()

	// A channel left running by an earlier process can still be stopped
	require.NoError(t, ctrl.Release(4))
	assert.Equal(t, []call{{Op: "init", Index: 1}, {Op: "stop", Index: 1, Channel: 1}}, hw.calls)

	err := ctrl.Release(99)
	assert.True(t, errors.Is(err, ErrPinNotFound))
	assert.Len(t, log.errors, 1)
}

func TestReleaseOwnedByOtherPin(t *testing.T) {
	ctrl, hw, _ := newTestController()
	require.NoError(t, ctrl.SetPWM(4, 1000, 20000))
	calls := len(hw.calls)

	err := ctrl.Release(20)
	assert.Equal(t, KindChannelBusy, KindOf(err))
	assert.Len(t, hw.calls, calls)

	owner, ok := ctrl.Owner(1, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(4), owner)
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Pin: 7, Kind: KindMux, Err: errors.New("bus fault")}
	assert.Equal(t, "pin GPIO 7: pin fails to config as PWM func: bus fault", err.Error())

	unknown := &Error{Pin: 3, Kind: ErrorKind(42)}
	assert.Equal(t, "pin GPIO 3: PWM error kind 42", unknown.Error())
	assert.False(t, errors.Is(unknown, ErrMux))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func TestDutyPulse(t *testing.T) {
	assert.Equal(t, uint32(0), DutyPulse(0, 255, 20000))
	assert.Equal(t, uint32(20000), DutyPulse(255, 255, 20000))
	assert.Equal(t, uint32(20000), DutyPulse(1000, 255, 20000))
	assert.Equal(t, uint32(0), DutyPulse(10, 0, 20000))
	assert.Equal(t, uint32(0x7FFFFFFF), DutyPulse(1, 2, 0xFFFFFFFF), "no overflow")
}

func TestClose(t *testing.T) {
	ctrl, hw, _ := newTestController()
	require.NoError(t, ctrl.SetPWM(4, 1000, 20000))
	require.NoError(t, ctrl.SetPWM(6, 1000, 20000))
	hw.calls = nil

	require.NoError(t, ctrl.Close())
	assert.ElementsMatch(t, []call{
		{Op: "stop", Index: 1, Channel: 1},
		{Op: "stop", Index: 2, Channel: 1},
	}, hw.calls)

	_, ok := ctrl.Owner(1, 1)
	assert.False(t, ok)
	_, ok = ctrl.Active()
	assert.False(t, ok)
}

func TestWriteDuty(t *testing.T) {
	ctrl, hw, _ := newTestController()

	require.NoError(t, ctrl.WriteDuty(4, 128, 255, 20000))
	last := hw.calls[len(hw.calls)-2]
	assert.Equal(t, uint32(20000*128/255), last.Pulse)

	require.NoError(t, ctrl.WriteDuty(4, 300, 255, 20000))
	last = hw.calls[len(hw.calls)-2]
	assert.Equal(t, uint32(20000), last.Pulse)

	require.NoError(t, ctrl.WriteDuty(4, 10, 0, 20000))
	last = hw.calls[len(hw.calls)-2]
	assert.Equal(t, uint32(0), last.Pulse)
}

func TestDebugLogger(t *testing.T) {
	var lines []string
	l := &DebugLogger{Write: func(s string) { lines = append(lines, s) }}

	l.Debugf("quiet %d", 1)
	l.Errorf("pin GPIO %d is not used as PWM func", 7)
	l.Verbose = true
	l.Debugf("loud %d", 2)

	assert.Equal(t, []string{"[PWM] pin GPIO 7 is not used as PWM func", "[PWM] loud 2"}, lines)
}
