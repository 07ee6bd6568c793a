package render

import (
	"image"
	"image/color"
)

var (
	opaqueAlpha = color.Alpha{A: 0xff}
	white       = color.Gray{Y: 0xff}
	black       = color.Gray{Y: 0x00}
)

func setPixel(img *image.Gray, x, y int, c color.Gray) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetGray(x, y, c)
	}
}

func line(img *image.Gray, x0, y0, x1, y1 int, c color.Gray) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func fillRect(img *image.Gray, r image.Rectangle, c color.Gray) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, c)
		}
	}
}

// roundedRect outlines r with corners cut by radius pixels.
func roundedRect(img *image.Gray, r image.Rectangle, radius int, c color.Gray) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	line(img, x0+radius, y0, x1-radius, y0, c)
	line(img, x0+radius, y1, x1-radius, y1, c)
	line(img, x0, y0+radius, x0, y1-radius, c)
	line(img, x1, y0+radius, x1, y1-radius, c)
	line(img, x0, y0+radius, x0+radius, y0, c)
	line(img, x1-radius, y0, x1, y0+radius, c)
	line(img, x0, y1-radius, x0+radius, y1, c)
	line(img, x1-radius, y1, x1, y1-radius, c)
}

func circle(img *image.Gray, cx, cy, r int, c color.Gray, filled bool) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			d := x*x + y*y
			if d > r*r {
				continue
			}
			if filled || d > (r-1)*(r-1) {
				setPixel(img, cx+x, cy+y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
