// Package battery reads the charge level shown in the dashboard corner.
package battery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"homedash/internal/config"
	"homedash/internal/model"
)

// PiSugar3 registers.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A

	DefaultAddress = 0x57
)

// Reader abstracts how battery information is obtained.
type Reader interface {
	Read(ctx context.Context) (model.BatteryStatus, error)
}

// Fixed always reports the same status. Used on machines without a gauge.
type Fixed model.BatteryStatus

func (f Fixed) Read(context.Context) (model.BatteryStatus, error) {
	return model.BatteryStatus(f), nil
}

// BusOpener opens the I2C bus for one read.
type BusOpener func() (i2c.BusCloser, error)

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// OpenBus returns a BusOpener for the named bus ("" selects the first one)
// that initialises the periph host drivers on first use.
func OpenBus(name string) BusOpener {
	return func() (i2c.BusCloser, error) {
		if err := hostInit(); err != nil {
			return nil, fmt.Errorf("battery: host init: %w", err)
		}
		bus, err := i2creg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("battery: open i2c bus %q: %w", name, err)
		}
		return bus, nil
	}
}

// PiSugar reads a PiSugar3 gauge over I2C.
type PiSugar struct {
	Open BusOpener
	Addr uint16
}

func (p *PiSugar) Read(ctx context.Context) (model.BatteryStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.BatteryStatus{}, err
	}
	bus, err := p.Open()
	if err != nil {
		return model.BatteryStatus{}, err
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: p.Addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: read register %#02x: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return model.BatteryStatus{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return model.BatteryStatus{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return model.BatteryStatus{}, err
	}

	return model.BatteryStatus{
		Percent:   min(int(pct), 100),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

var errDisabled = errors.New("battery: gauge disabled")

// Open builds the reader selected by cfg. A disabled gauge returns a nil
// Reader and an error wrapping errDisabled.
func Open(cfg config.BatteryConfig) (Reader, error) {
	switch {
	case !cfg.Enabled:
		return nil, errDisabled
	case cfg.Mock:
		return Fixed{Percent: 100}, nil
	}
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	return &PiSugar{Open: OpenBus(cfg.Bus), Addr: addr}, nil
}

// IsDisabled reports whether err came from Open on a disabled gauge.
func IsDisabled(err error) bool {
	return errors.Is(err, errDisabled)
}
