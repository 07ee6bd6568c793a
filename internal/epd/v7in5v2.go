package epd

import (
	"context"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"homedash/internal/config"
	"homedash/internal/convert"
	appLog "homedash/internal/log"
)

// Controller commands used by the 7.5" V2 panel.
const (
	cmdPanelSetting    = 0x00
	cmdPowerSetting    = 0x01
	cmdPowerOff        = 0x02
	cmdPowerOn         = 0x04
	cmdDeepSleep       = 0x07
	cmdOldData         = 0x10
	cmdRefresh         = 0x12
	cmdNewData         = 0x13
	cmdDualSPI         = 0x15
	cmdVcomInterval    = 0x50
	cmdTCON            = 0x60
	cmdResolution      = 0x61
	cmdGetStatus       = 0x71
	deepSleepCheckCode = 0xA5
)

// spidev transfers are capped at one page by default.
const maxChunk = 4096

const busyPoll = 10 * time.Millisecond

// Conn is the part of spi.Conn the driver needs.
type Conn interface {
	Tx(w, r []byte) error
}

// Dev is the wiring of one panel: the SPI connection and its control pins.
type Dev struct {
	SPI  Conn
	DC   gpio.PinOut
	RST  gpio.PinOut
	Busy gpio.PinIn
	// CS is optional; nil leaves chip select to the SPI controller.
	CS gpio.PinOut
}

func (d *Dev) selectChip(on bool) {
	if d.CS == nil {
		return
	}
	if on {
		_ = d.CS.Out(gpio.Low)
	} else {
		_ = d.CS.Out(gpio.High)
	}
}

// send writes one command byte followed by its data.
func (d *Dev) send(cmd byte, data ...byte) error {
	if err := d.write(gpio.Low, []byte{cmd}); err != nil {
		return fmt.Errorf("epd: command %#02x: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.write(gpio.High, data); err != nil {
		return fmt.Errorf("epd: data for %#02x: %w", cmd, err)
	}
	return nil
}

func (d *Dev) write(dc gpio.Level, b []byte) error {
	if err := d.DC.Out(dc); err != nil {
		return err
	}
	d.selectChip(true)
	defer d.selectChip(false)
	for len(b) > 0 {
		n := min(len(b), maxChunk)
		if err := d.SPI.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Driver7in5V2 drives a Waveshare 7.5" V2 (800x480, black/white) panel.
type Driver7in5V2 struct {
	dev *Dev
	// Delay is used for the reset and power-on pauses.
	Delay func(time.Duration)
}

func NewDriver7in5V2(dev *Dev) *Driver7in5V2 {
	return &Driver7in5V2{dev: dev, Delay: time.Sleep}
}

// Open7in5V2 initialises periph.io and wires the panel from cfg. The BCM
// pin numbers are looked up as "GPIO<n>".
func Open7in5V2(cfg config.DisplayConfig) (*Driver7in5V2, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("epd: open SPI port %q: %w", cfg.SPIPort, err)
	}
	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: connect SPI: %w", err)
	}

	out := func(num int, level gpio.Level) (gpio.PinIO, error) {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", num))
		if p == nil {
			return nil, fmt.Errorf("epd: gpio %d not found", num)
		}
		if err := p.Out(level); err != nil {
			return nil, fmt.Errorf("epd: gpio %d out: %w", num, err)
		}
		return p, nil
	}

	dev := &Dev{SPI: conn}
	if dev.DC, err = out(cfg.PinDC, gpio.Low); err != nil {
		return nil, err
	}
	if dev.RST, err = out(cfg.PinRST, gpio.High); err != nil {
		return nil, err
	}
	busy := gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.PinBusy))
	if busy == nil {
		return nil, fmt.Errorf("epd: gpio %d not found", cfg.PinBusy)
	}
	if err := busy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("epd: gpio %d in: %w", cfg.PinBusy, err)
	}
	dev.Busy = busy
	if cfg.PinCS > 0 {
		// The kernel may own CE0 already; fall back to hardware chip select.
		if cs, err := out(cfg.PinCS, gpio.High); err == nil {
			dev.CS = cs
		} else {
			appLog.Debug("epd: using hardware chip select", "pin", cfg.PinCS, "error", err)
		}
	}
	return NewDriver7in5V2(dev), nil
}

func (d *Driver7in5V2) reset() error {
	for _, step := range []struct {
		level gpio.Level
		wait  time.Duration
	}{
		{gpio.High, 20 * time.Millisecond},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, 20 * time.Millisecond},
	} {
		if err := d.dev.RST.Out(step.level); err != nil {
			return fmt.Errorf("epd: reset: %w", err)
		}
		d.Delay(step.wait)
	}
	return nil
}

// Wake resets the controller and runs the init sequence. It is required
// after Sleep since deep sleep can only be left through a reset.
func (d *Driver7in5V2) Wake(ctx context.Context) error {
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.dev.send(cmdPowerSetting, 0x07, 0x07, 0x3f, 0x3f); err != nil {
		return err
	}
	if err := d.dev.send(cmdPowerOn); err != nil {
		return err
	}
	d.Delay(100 * time.Millisecond)
	if err := d.WaitUntilIdle(ctx); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdPanelSetting, []byte{0x1f}}, // KW mode, OTP LUT
		{cmdResolution, []byte{0x03, 0x20, 0x01, 0xe0}},
		{cmdDualSPI, []byte{0x00}},
		{cmdVcomInterval, []byte{0x10, 0x07}},
		{cmdTCON, []byte{0x22}},
	}
	for _, s := range steps {
		if err := d.dev.send(s.cmd, s.data...); err != nil {
			return err
		}
	}
	return nil
}

// Clear paints the panel white and waits for the refresh.
func (d *Driver7in5V2) Clear(ctx context.Context) error {
	plane := make([]byte, convert.PackedSize())
	for i := range plane {
		plane[i] = 0xff
	}
	if err := d.writePlanes(plane); err != nil {
		return err
	}
	if err := d.dev.send(cmdRefresh); err != nil {
		return err
	}
	d.Delay(100 * time.Millisecond)
	return d.WaitUntilIdle(ctx)
}

// UpdateAndDisplay uploads frame and starts a refresh without waiting for
// it. Portrait frames are rotated onto the landscape panel.
func (d *Driver7in5V2) UpdateAndDisplay(ctx context.Context, frame image.Image) error {
	b := frame.Bounds()
	plane, err := convert.PackGray(frame, b.Dy() > b.Dx())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.writePlanes(plane); err != nil {
		return err
	}
	return d.dev.send(cmdRefresh)
}

// writePlanes sends the frame as old data and its inverse as new data.
func (d *Driver7in5V2) writePlanes(plane []byte) error {
	if err := d.dev.send(cmdOldData, plane...); err != nil {
		return err
	}
	inv := make([]byte, len(plane))
	for i, v := range plane {
		inv[i] = ^v
	}
	return d.dev.send(cmdNewData, inv...)
}

// WaitUntilIdle polls the status until BUSY goes high (BUSY is active low).
func (d *Driver7in5V2) WaitUntilIdle(ctx context.Context) error {
	for {
		if err := d.dev.send(cmdGetStatus); err != nil {
			return err
		}
		if d.dev.Busy.Read() == gpio.High {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("epd: waiting for panel: %w", ctx.Err())
		case <-time.After(busyPoll):
		}
	}
}

// Sleep powers the panel off and enters deep sleep.
func (d *Driver7in5V2) Sleep(ctx context.Context) error {
	if err := d.dev.send(cmdPowerOff); err != nil {
		return err
	}
	if err := d.WaitUntilIdle(ctx); err != nil {
		return err
	}
	return d.dev.send(cmdDeepSleep, deepSleepCheckCode)
}
