package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sgpwm/core"
	"sgpwm/host/config"
	"sgpwm/host/mcu"
	"sgpwm/targets/sg200x"
)

// backend is implemented by the local controller and the serial client
type backend interface {
	SetPWM(pin uint8, pulse, period uint32) error
	Release(pin uint8) error
	Close() error
}

func openBackend(cfg *config.Config, logger *zap.SugaredLogger) (backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return openLocal(cfg, logger)
	case config.BackendSerial:
		return mcu.Connect(&cfg.Serial, logger)
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Backend)
}

// localBackend drives this board's PWM blocks. Outputs keep running after
// Close; only the register mapping is released.
type localBackend struct {
	*core.Controller
	mem *sg200x.DevMem
}

func openLocal(cfg *config.Config, logger *zap.SugaredLogger) (*localBackend, error) {
	mem, err := sg200x.OpenDevMem()
	if err != nil {
		return nil, err
	}
	mux := sg200x.NewPinmux(mem, logger)
	driver := sg200x.NewSysfsDriver(cfg.Sysfs.Root, logger)
	ctrl := core.NewController(cfg.PinMap(sg200x.PinMap()), mux, driver, logger)
	return &localBackend{Controller: ctrl, mem: mem}, nil
}

func (l *localBackend) Close() error {
	return l.mem.Close()
}
