package render

import (
	"image"
)

// IconSize is the edge of the square weather pictogram.
const IconSize = 32

// drawIcon paints the named pictogram with its top-left corner at (x, y).
// It reports false for names it does not know; nothing is drawn then.
func drawIcon(img *image.Gray, name string, x, y int) bool {
	switch name {
	case "sun":
		sun(img, x+16, y+16, 7)
	case "moon":
		moon(img, x+16, y+16, 9)
	case "cloud":
		cloud(img, x, y+2)
	case "cloud_sun":
		sun(img, x+10, y+9, 5)
		cloud(img, x+2, y+6)
	case "cloud_moon":
		moon(img, x+10, y+9, 6)
		cloud(img, x+2, y+6)
	case "cloud_wind":
		cloud(img, x, y-2)
		for i := range 3 {
			yy := y + 24 + i*3
			line(img, x+4+i*3, yy, x+28-i*2, yy, white)
		}
	case "rain0":
		cloud(img, x, y-2)
		drops(img, x, y, 1)
	case "rain1":
		cloud(img, x, y-2)
		drops(img, x, y, 2)
	case "rain2":
		cloud(img, x, y-2)
		drops(img, x, y, 3)
	case "rain_snow":
		cloud(img, x, y-2)
		drops(img, x, y, 1)
		flakes(img, x+8, y, 1)
	case "snow":
		cloud(img, x, y-2)
		flakes(img, x, y, 3)
	case "rain_lightning":
		cloud(img, x, y-2)
		bolt(img, x+14, y+22)
	default:
		return false
	}
	return true
}

func sun(img *image.Gray, cx, cy, r int) {
	circle(img, cx, cy, r-3, white, true)
	for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {-1, -1}, {1, -1}, {-1, 1}} {
		line(img, cx+d[0]*(r-1), cy+d[1]*(r-1), cx+d[0]*(r+2), cy+d[1]*(r+2), white)
	}
}

func moon(img *image.Gray, cx, cy, r int) {
	circle(img, cx, cy, r, white, true)
	circle(img, cx+r/2, cy-r/3, r-1, black, true)
}

// cloud fills a cloud silhouette roughly 28x18 below (x, y).
func cloud(img *image.Gray, x, y int) {
	circle(img, x+10, y+16, 6, white, true)
	circle(img, x+18, y+12, 8, white, true)
	circle(img, x+25, y+17, 5, white, true)
	fillRect(img, image.Rect(x+8, y+16, x+28, y+23), white)
}

func drops(img *image.Gray, x, y, n int) {
	for i := range n {
		dx := x + 8 + i*7
		line(img, dx+2, y+24, dx, y+29, white)
	}
}

func flakes(img *image.Gray, x, y, n int) {
	for i := range n {
		fx := x + 9 + i*7
		line(img, fx-1, y+27, fx+1, y+27, white)
		line(img, fx, y+26, fx, y+28, white)
	}
}

func bolt(img *image.Gray, x, y int) {
	line(img, x+3, y, x, y+4, white)
	line(img, x, y+4, x+4, y+4, white)
	line(img, x+4, y+4, x+1, y+9, white)
}
