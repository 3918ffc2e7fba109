// Command sgpwm programs PWM outputs on SG200x boards, either directly through
// sysfs or through PWM firmware on a serial link.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"sgpwm/core"
	"sgpwm/host/config"
	"sgpwm/targets/sg200x"
)

const (
	flagConfig    = "config"
	flagBackend   = "backend"
	flagDevice    = "device"
	flagLogLevel  = "log-level"
	flagSysfsRoot = "sysfs-root"

	flagPin    = "pin"
	flagPulse  = "pulse"
	flagPeriod = "period"
	flagDuty   = "duty"
	flagMax    = "duty-max"

	defaultPeriod = 20 * time.Millisecond
)

func main() {
	app := &cli.App{
		Name:  "sgpwm",
		Usage: "set PWM outputs on SG200x pins",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:  flagBackend,
				Usage: "local (sysfs) or serial (firmware)",
			},
			&cli.StringFlag{
				Name:  flagDevice,
				Usage: "serial device for the serial backend",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagSysfsRoot,
				Usage: "PWM class directory for the local backend",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "drive a pin with a pulse train",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: flagPin, Required: true, Usage: "GPIO number"},
					&cli.DurationFlag{Name: flagPulse, Usage: "pulse width, e.g. 1.5ms"},
					&cli.DurationFlag{Name: flagPeriod, Value: defaultPeriod, Usage: "signal period"},
					&cli.UintFlag{Name: flagDuty, Usage: "duty value out of --duty-max instead of --pulse"},
					&cli.UintFlag{Name: flagMax, Value: 255, Usage: "full scale for --duty"},
				},
				Action: setAction,
			},
			{
				Name:   "release",
				Usage:  "stop a pin's output and free its channel",
				Flags:  []cli.Flag{&cli.UintFlag{Name: flagPin, Required: true, Usage: "GPIO number"}},
				Action: releaseAction,
			},
			{
				Name:   "pins",
				Usage:  "list PWM capable pins",
				Action: pinsAction,
			},
			{
				Name:   "shell",
				Usage:  "interactive command loop",
				Action: shellAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies global flags
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if v := c.String(flagBackend); v != "" {
		cfg.Backend = v
	}
	if v := c.String(flagDevice); v != "" {
		cfg.Serial.Device = v
	}
	if v := c.String(flagLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String(flagSysfsRoot); v != "" {
		cfg.Sysfs.Root = v
	}
	return cfg, cfg.Validate()
}

// withBackend opens the configured backend, runs fn and closes it again
func withBackend(c *cli.Context, fn func(b backend, logger *zap.SugaredLogger) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	zl, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer zl.Sync() //nolint:errcheck
	logger := zl.Sugar()

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warnw("close failed", "error", err)
		}
	}()
	return fn(b, logger)
}

func setAction(c *cli.Context) error {
	pin, err := pinArg(c)
	if err != nil {
		return err
	}
	period, err := micros(c.Duration(flagPeriod))
	if err != nil {
		return errors.Wrap(err, "--period")
	}

	var pulse uint32
	switch {
	case c.IsSet(flagDuty):
		pulse = core.DutyPulse(uint32(c.Uint(flagDuty)), uint32(c.Uint(flagMax)), period)
	case c.IsSet(flagPulse):
		if pulse, err = micros(c.Duration(flagPulse)); err != nil {
			return errors.Wrap(err, "--pulse")
		}
	default:
		return errors.New("either --pulse or --duty is required")
	}
	if pulse > period {
		return errors.Errorf("pulse %dus exceeds period %dus", pulse, period)
	}

	return withBackend(c, func(b backend, logger *zap.SugaredLogger) error {
		if err := b.SetPWM(pin, pulse, period); err != nil {
			return err
		}
		logger.Infow("pwm set", "pin", pin, "pulse_us", pulse, "period_us", period)
		return nil
	})
}

func releaseAction(c *cli.Context) error {
	pin, err := pinArg(c)
	if err != nil {
		return err
	}
	return withBackend(c, func(b backend, logger *zap.SugaredLogger) error {
		if err := b.Release(pin); err != nil {
			return err
		}
		logger.Infow("pwm released", "pin", pin)
		return nil
	})
}

func pinsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	printPins(c.App.Writer, cfg.PinMap(sg200x.PinMap()))
	return nil
}

func shellAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	pins := cfg.PinMap(sg200x.PinMap())
	return withBackend(c, func(b backend, _ *zap.SugaredLogger) error {
		return runShell(c.App.Reader, c.App.Writer, b, pins)
	})
}

func pinArg(c *cli.Context) (uint8, error) {
	v := c.Uint(flagPin)
	if v > 255 {
		return 0, errors.Errorf("pin %d out of range", v)
	}
	return uint8(v), nil
}

// micros converts d to whole microseconds, the PWM driver unit
func micros(d time.Duration) (uint32, error) {
	if d < 0 {
		return 0, errors.Errorf("negative duration %v", d)
	}
	us := d / time.Microsecond
	if us > time.Duration(^uint32(0)) {
		return 0, errors.Errorf("duration %v too long", d)
	}
	return uint32(us), nil
}
