package render

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Text sizes are integer scalings of the bundled 7x13 face.
const (
	small = 1
	large = 2
	huge  = 3
)

type align int

const (
	alignLeft align = iota
	alignCenter
)

type baseline int

const (
	baselineTop baseline = iota
	baselineBottom
)

var face = basicfont.Face7x13

// glyph height and advance of the unscaled face
const (
	glyphHeight  = 13
	glyphAdvance = 7
	glyphAscent  = 11
)

// mark is a diacritic the face cannot render on its own.
type mark int

const (
	markNone mark = iota
	markRing
	markUmlautUpper
	markUmlautLower
)

// fold maps a rune onto one the face has plus a mark drawn on top.
func fold(r rune) (rune, mark) {
	switch r {
	case '°':
		return ' ', markRing
	case 'Ä':
		return 'A', markUmlautUpper
	case 'Ö':
		return 'O', markUmlautUpper
	case 'Ü':
		return 'U', markUmlautUpper
	case 'ä':
		return 'a', markUmlautLower
	case 'ö':
		return 'o', markUmlautLower
	case 'ü':
		return 'u', markUmlautLower
	case 'ß':
		return 'B', markNone
	}
	return r, markNone
}

// textWidth is the rendered width of s at scale in pixels.
func textWidth(s string, scale int) int {
	n := 0
	for range s {
		n++
	}
	return n * glyphAdvance * scale
}

// drawText renders s in white onto dst. pt.X is the left edge or the centre
// depending on a; pt.Y is the top or bottom edge depending on b.
func drawText(dst draw.Image, pt image.Point, s string, scale int, a align, b baseline) {
	w := textWidth(s, 1)
	if w == 0 {
		return
	}
	mask := image.NewAlpha(image.Rect(0, 0, w, glyphHeight))
	d := font.Drawer{Dst: mask, Src: image.Opaque, Face: face, Dot: fixed.P(0, glyphAscent)}

	x := 0
	for _, r := range s {
		base, m := fold(r)
		d.Dot = fixed.P(x, glyphAscent)
		d.DrawString(string(base))
		drawMark(mask, x, m)
		x += glyphAdvance
	}

	out := image.Rect(0, 0, w*scale, glyphHeight*scale)
	switch a {
	case alignCenter:
		out = out.Add(image.Pt(pt.X-out.Dx()/2, 0))
	default:
		out = out.Add(image.Pt(pt.X, 0))
	}
	switch b {
	case baselineBottom:
		out = out.Add(image.Pt(0, pt.Y-out.Dy()))
	default:
		out = out.Add(image.Pt(0, pt.Y))
	}

	scaled := mask
	if scale != 1 {
		scaled = image.NewAlpha(image.Rect(0, 0, out.Dx(), out.Dy()))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), mask, mask.Bounds(), draw.Src, nil)
	}
	draw.DrawMask(dst, out, image.White, image.Point{}, scaled, image.Point{}, draw.Over)
}

func drawMark(mask *image.Alpha, x int, m mark) {
	on := func(px, py int) { mask.SetAlpha(x+px, py, opaqueAlpha) }
	switch m {
	case markRing:
		for _, p := range [][2]int{{2, 1}, {3, 1}, {1, 2}, {4, 2}, {1, 3}, {4, 3}, {2, 4}, {3, 4}} {
			on(p[0], p[1])
		}
	case markUmlautUpper:
		on(2, 0)
		on(4, 0)
	case markUmlautLower:
		on(2, 3)
		on(4, 3)
	}
}
