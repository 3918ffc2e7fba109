package core

import (
	"fmt"
)

// call is one recorded driver interaction
type call struct {
	Op      string
	Index   uint8
	Channel uint8
	Period  uint32
	Pulse   uint32
}

// output is a snapshot of a channel while it is running
type output struct {
	Period uint32
	Pulse  uint32
}

type channelState struct {
	period  uint32
	pulse   uint32
	running bool
}

// fakeHW records every mux and driver call and simulates channel outputs
type fakeHW struct {
	calls    []call
	muxErr   error
	initErr  error
	startErr error
	channels map[[2]uint8]*channelState
	emitted  map[[2]uint8][]output
}

func newFakeHW() *fakeHW {
	return &fakeHW{
		channels: make(map[[2]uint8]*channelState),
		emitted:  make(map[[2]uint8][]output),
	}
}

func (h *fakeHW) SetMux(name string, fn uint8) error {
	h.calls = append(h.calls, call{Op: "mux:" + name + fmt.Sprintf("/%d", fn)})
	return h.muxErr
}

func (h *fakeHW) Init(index uint8) (PWMInstance, error) {
	h.calls = append(h.calls, call{Op: "init", Index: index})
	if h.initErr != nil {
		return nil, h.initErr
	}
	return &fakeInstance{hw: h, index: index}, nil
}

func (h *fakeHW) ops() []string {
	ops := make([]string, len(h.calls))
	for i, c := range h.calls {
		ops[i] = c.Op
	}
	return ops
}

func (h *fakeHW) state(index, channel uint8) *channelState {
	key := [2]uint8{index, channel}
	st, ok := h.channels[key]
	if !ok {
		st = &channelState{}
		h.channels[key] = st
	}
	return st
}

// emit records what the channel outputs whenever it is running
func (h *fakeHW) emit(index, channel uint8) {
	st := h.state(index, channel)
	if st.running {
		key := [2]uint8{index, channel}
		h.emitted[key] = append(h.emitted[key], output{Period: st.period, Pulse: st.pulse})
	}
}

type fakeInstance struct {
	hw    *fakeHW
	index uint8
}

func (f *fakeInstance) Stop(channel uint8) error {
	f.hw.calls = append(f.hw.calls, call{Op: "stop", Index: f.index, Channel: channel})
	f.hw.state(f.index, channel).running = false
	return nil
}

func (f *fakeInstance) ConfigContinuous(channel uint8, period, pulse uint32, polarity Polarity) error {
	f.hw.calls = append(f.hw.calls, call{Op: "config", Index: f.index, Channel: channel, Period: period, Pulse: pulse})
	st := f.hw.state(f.index, channel)
	st.period = period
	st.pulse = pulse
	f.hw.emit(f.index, channel)
	return nil
}

func (f *fakeInstance) Start(channel uint8) error {
	f.hw.calls = append(f.hw.calls, call{Op: "start", Index: f.index, Channel: channel})
	if f.hw.startErr != nil {
		return f.hw.startErr
	}
	f.hw.state(f.index, channel).running = true
	f.hw.emit(f.index, channel)
	return nil
}

// recordingLogger captures formatted diagnostics
type recordingLogger struct {
	errors []string
	debugs []string
}

func (l *recordingLogger) Errorf(template string, args ...interface{}) {
	l.errors = append(l.errors, fmt.Sprintf(template, args...))
}

func (l *recordingLogger) Debugf(template string, args ...interface{}) {
	l.debugs = append(l.debugs, fmt.Sprintf(template, args...))
}

var testPins = PinMap{
	{Pin: 4, Name: "SD1_D2", Func: 2, Idx: 5, Caps: CapPWM | CapGPIO},
	{Pin: 5, Name: "SD1_D1", Func: 2, Idx: 6, Caps: CapPWM | CapGPIO},
	{Pin: 6, Name: "SD1_CLK", Func: 2, Idx: 9, Caps: CapPWM},
	{Pin: 14, Name: "SD1_GPIO0", Func: 3, Idx: 14, Caps: CapGPIO},
	{Pin: 20, Name: "ALIAS_D2", Func: 4, Idx: 5, Caps: CapPWM},
}

func newTestController() (*Controller, *fakeHW, *recordingLogger) {
	hw := newFakeHW()
	log := &recordingLogger{}
	return NewController(testPins, hw, hw, log), hw, log
}
