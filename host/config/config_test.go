package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgpwm/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Device)
	assert.Equal(t, 250000, cfg.Serial.Baud)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgpwm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: serial
log_level: debug
serial:
  device: /dev/ttyUSB1
sysfs:
  root: /tmp/pwm
pins:
  - pin: 4
    pad: SD1_D2
    func: 3
    index: 12
  - pin: 30
    pad: GPIOA_30
    func: 1
    index: 2
    gpio: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSerial, cfg.Backend)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)
	assert.Equal(t, 250000, cfg.Serial.Baud, "unset fields keep defaults")
	assert.Equal(t, "/tmp/pwm", cfg.Sysfs.Root)

	base := core.PinMap{
		{Pin: 4, Name: "SD1_D2", Func: 2, Idx: 5, Caps: core.CapPWM},
		{Pin: 5, Name: "SD1_D1", Func: 2, Idx: 6, Caps: core.CapPWM},
	}
	pins := cfg.PinMap(base)
	require.Len(t, pins, 3)
	assert.Equal(t, core.PinMapEntry{Pin: 4, Name: "SD1_D2", Func: 3, Idx: 12, Caps: core.CapPWM}, pins[0])
	assert.Equal(t, base[1], pins[1])
	assert.Equal(t, core.CapPWM|core.CapGPIO, pins[2].Caps)
	assert.Equal(t, uint8(5), base[0].Idx, "base table is not modified")

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1), "debug level enabled")
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"backend":   "backend: usb",
		"level":     "log_level: loud",
		"pad":       "pins: [{pin: 4}]",
		"duplicate": "pins: [{pin: 4, pad: A}, {pin: 4, pad: B}]",
		"yaml":      "pins: {",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}
