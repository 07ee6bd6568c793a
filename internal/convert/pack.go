package convert

import (
	"fmt"
	"image"
	"image/color"
)

// Panel geometry (7.5" V2, landscape).
const (
	PanelWidth      = 800
	PanelHeight     = 480
	PanelByteStride = PanelWidth / 8 // 100 bytes per row
)

// PackedSize is the length of one packed plane.
func PackedSize() int { return PanelByteStride * PanelHeight }

// whiteThreshold splits gray levels into ink and paper.
const whiteThreshold = 0x80

// PackGray converts img into a 1bpp plane for the panel.
//
// With rotate90 the image is taken as portrait (480x800) and turned
// clockwise; without it, it must already be 800x480.
//
// The plane is y-major, MSB-first:
//
//	byteIndex = y*100 + x>>3
//	mask      = 0x80 >> (x & 7)
//
// A set bit is white.
func PackGray(img image.Image, rotate90 bool) ([]byte, error) {
	b := img.Bounds()
	wantW, wantH := PanelWidth, PanelHeight
	if rotate90 {
		wantW, wantH = PanelHeight, PanelWidth
	}
	if b.Dx() != wantW || b.Dy() != wantH {
		return nil, fmt.Errorf("convert: expected %dx%d image, got %dx%d", wantW, wantH, b.Dx(), b.Dy())
	}

	at := grayAt(img)
	out := make([]byte, PackedSize())
	for py := 0; py < PanelHeight; py++ {
		for px := 0; px < PanelWidth; px++ {
			sx, sy := px, py
			if rotate90 {
				sx, sy = py, wantH-1-px
			}
			if at(b.Min.X+sx, b.Min.Y+sy) < whiteThreshold {
				continue
			}
			out[py*PanelByteStride+px>>3] |= 0x80 >> (px & 7)
		}
	}
	return out, nil
}

// grayAt returns a luminance lookup, reading *image.Gray without
// conversion.
func grayAt(img image.Image) func(x, y int) uint8 {
	if g, ok := img.(*image.Gray); ok {
		return func(x, y int) uint8 { return g.Pix[g.PixOffset(x, y)] }
	}
	return func(x, y int) uint8 {
		return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
	}
}
