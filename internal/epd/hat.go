package epd

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"
	"periph.io/x/host/v3"
)

// hatDevice is the subset of *waveshare2in13v4.Dev the adapter uses.
type hatDevice interface {
	Init() error
	Clear(color.Color) error
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Sleep() error
	Bounds() image.Rectangle
}

// Hat2in13V4 shows a scaled-down dashboard on the 2.13" V4 HAT. The
// underlying driver refreshes synchronously, so WaitUntilIdle returns at
// once.
type Hat2in13V4 struct {
	dev hatDevice
}

// OpenHat2in13V4 initialises periph.io and opens the HAT on port.
func OpenHat2in13V4(port string) (*Hat2in13V4, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("epd: open SPI port %q: %w", port, err)
	}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(p, &opts)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("epd: open 2.13\" HAT: %w", err)
	}
	return &Hat2in13V4{dev: dev}, nil
}

func (h *Hat2in13V4) Wake(context.Context) error {
	if err := h.dev.Init(); err != nil {
		return fmt.Errorf("epd: hat init: %w", err)
	}
	return nil
}

func (h *Hat2in13V4) Clear(context.Context) error {
	if err := h.dev.Clear(color.White); err != nil {
		return fmt.Errorf("epd: hat clear: %w", err)
	}
	return nil
}

func (h *Hat2in13V4) UpdateAndDisplay(ctx context.Context, frame image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img := fitFrame(frame, h.dev.Bounds())
	if err := h.dev.Draw(img.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("epd: hat draw: %w", err)
	}
	return nil
}

func (h *Hat2in13V4) WaitUntilIdle(context.Context) error { return nil }

func (h *Hat2in13V4) Sleep(context.Context) error {
	if err := h.dev.Sleep(); err != nil {
		return fmt.Errorf("epd: hat sleep: %w", err)
	}
	return nil
}

// fitFrame scales frame into bounds keeping its aspect ratio, centred on a
// black background, as a 1bpp image.
func fitFrame(frame image.Image, bounds image.Rectangle) *image1bit.VerticalLSB {
	src := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if src.Dx()*h > src.Dy()*w {
		h = src.Dy() * w / src.Dx()
	} else {
		w = src.Dx() * h / src.Dy()
	}
	off := image.Pt(bounds.Min.X+(bounds.Dx()-w)/2, bounds.Min.Y+(bounds.Dy()-h)/2)

	gray := image.NewGray(bounds)
	draw.ApproxBiLinear.Scale(gray, image.Rectangle{Min: off, Max: off.Add(image.Pt(w, h))}, frame, src, draw.Src, nil)

	out := image1bit.NewVerticalLSB(bounds)
	draw.Draw(out, bounds, gray, bounds.Min, draw.Src)
	return out
}
