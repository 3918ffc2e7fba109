package sg200x

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sgpwm/core"
)

// DefaultSysfsRoot is where the kernel exposes PWM chips
const DefaultSysfsRoot = "/sys/class/pwm"

// nsPerUnit converts the driver's native microseconds to sysfs nanoseconds
const nsPerUnit = 1000

// SysfsDriver implements core.PWMDriver over the Linux PWM sysfs interface.
// The SG200x kernel registers one pwmchip per block, numbered after its first
// global channel, so block N is pwmchip(4*N). Period and pulse are in
// microseconds.
type SysfsDriver struct {
	Root string

	// ExportTimeout bounds the wait for udev to create an exported channel
	ExportTimeout time.Duration

	logger *zap.SugaredLogger
}

// NewSysfsDriver creates a driver rooted at root ("" for DefaultSysfsRoot)
func NewSysfsDriver(root string, logger *zap.SugaredLogger) *SysfsDriver {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsDriver{Root: root, ExportTimeout: 2 * time.Second, logger: logger}
}

// Init checks that the pwmchip for index is present
func (d *SysfsDriver) Init(index uint8) (core.PWMInstance, error) {
	chip := filepath.Join(d.Root, "pwmchip"+strconv.Itoa(int(index)*core.ChannelsPerPeripheral))
	npwm, err := readUint(filepath.Join(chip, "npwm"))
	if err != nil {
		return nil, errors.Wrapf(err, "PWM%d not available", index)
	}
	return &sysfsChip{driver: d, dir: chip, npwm: npwm}, nil
}

type sysfsChip struct {
	driver *SysfsDriver
	dir    string
	npwm   uint64
}

func (c *sysfsChip) channelDir(channel uint8) string {
	return filepath.Join(c.dir, "pwm"+strconv.Itoa(int(channel)))
}

func (c *sysfsChip) exported(channel uint8) bool {
	fi, err := os.Stat(c.channelDir(channel))
	return err == nil && fi.IsDir()
}

func (c *sysfsChip) export(channel uint8) error {
	if c.exported(channel) {
		return nil
	}
	if uint64(channel) >= c.npwm {
		return errors.Errorf("%s: channel %d exceeds npwm %d", c.dir, channel, c.npwm)
	}
	if err := c.write(filepath.Join(c.dir, "export"), uint64(channel)); err != nil {
		return err
	}

	deadline := time.Now().Add(c.driver.ExportTimeout)
	for !c.exported(channel) {
		if time.Now().After(deadline) {
			return errors.Errorf("%s: could not export channel %d", c.dir, channel)
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

// Stop disables the channel; unexported channels are already idle
func (c *sysfsChip) Stop(channel uint8) error {
	if !c.exported(channel) {
		return nil
	}
	return c.write(filepath.Join(c.channelDir(channel), "enable"), 0)
}

func (c *sysfsChip) ConfigContinuous(channel uint8, period, pulse uint32, polarity core.Polarity) error {
	if pulse > period {
		return errors.Errorf("pulse %d exceeds period %d", pulse, period)
	}
	if err := c.export(channel); err != nil {
		return err
	}
	dir := c.channelDir(channel)
	periodNs := uint64(period) * nsPerUnit
	pulseNs := uint64(pulse) * nsPerUnit

	// The kernel rejects a period shorter than the current duty cycle
	if cur, err := readUint(filepath.Join(dir, "duty_cycle")); err == nil && cur > periodNs {
		if err := c.write(filepath.Join(dir, "duty_cycle"), 0); err != nil {
			return err
		}
	}
	if err := c.write(filepath.Join(dir, "period"), periodNs); err != nil {
		return err
	}
	if err := c.write(filepath.Join(dir, "duty_cycle"), pulseNs); err != nil {
		return err
	}

	// Not every PWM driver exposes polarity
	polarityPath := filepath.Join(dir, "polarity")
	if _, err := os.Stat(polarityPath); err != nil {
		return nil
	}
	value := "normal"
	if polarity == core.PolarityLow {
		value = "inversed"
	}
	return c.writeString(polarityPath, value)
}

func (c *sysfsChip) Start(channel uint8) error {
	return c.write(filepath.Join(c.channelDir(channel), "enable"), 1)
}

func (c *sysfsChip) write(path string, value uint64) error {
	return c.writeString(path, strconv.FormatUint(value, 10))
}

func (c *sysfsChip) writeString(path, value string) error {
	c.driver.logger.Debugf("Writing %s to %s", value, path)
	if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func readUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}
