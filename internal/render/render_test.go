package render

import (
	"image"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/model"
)

func inkIn(img *image.Gray, r image.Rectangle) int {
	n := 0
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y > 0x7f {
				n++
			}
		}
	}
	return n
}

func TestFormatTemp(t *testing.T) {
	t.Parallel()
	cases := map[float64]string{
		-0.4:                 "0°C",
		-0.99:                "0°C",
		math.Copysign(0, -1): "0°C",
		0:                    "0°C",
		-1.2:                 "-1°C",
		21.6:                 "22°C",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatTemp(in), "input %v", in)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()
	mon := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Mo", weekday(mon))
	assert.Equal(t, "So", weekday(mon.AddDate(0, 0, 6)))
	assert.Equal(t, "MÄR", month(time.March))
	assert.Equal(t, "DEZ", month(time.December))
	assert.Equal(t, "???", month(0))
}

func TestDrawTextPlacement(t *testing.T) {
	t.Parallel()
	img := image.NewGray(image.Rect(0, 0, 100, 60))

	drawText(img, image.Pt(50, 0), "AB", large, alignCenter, baselineTop)
	box := image.Rect(50-14, 0, 50+14, 26)
	assert.Positive(t, inkIn(img, box))
	assert.Equal(t, inkIn(img, img.Rect), inkIn(img, box))

	img = image.NewGray(image.Rect(0, 0, 100, 60))
	drawText(img, image.Pt(0, 60), "x", small, alignLeft, baselineBottom)
	assert.Equal(t, inkIn(img, img.Rect), inkIn(img, image.Rect(0, 47, 7, 60)))
	assert.Positive(t, inkIn(img, img.Rect))
}

func TestDrawTextMarks(t *testing.T) {
	t.Parallel()
	plain := image.NewGray(image.Rect(0, 0, 20, 13))
	drawText(plain, image.Pt(0, 0), "A", small, alignLeft, baselineTop)
	umlaut := image.NewGray(image.Rect(0, 0, 20, 13))
	drawText(umlaut, image.Pt(0, 0), "Ä", small, alignLeft, baselineTop)
	assert.Equal(t, inkIn(plain, plain.Rect)+2, inkIn(umlaut, umlaut.Rect))

	deg := image.NewGray(image.Rect(0, 0, 20, 13))
	drawText(deg, image.Pt(0, 0), "°", small, alignLeft, baselineTop)
	assert.Equal(t, 8, inkIn(deg, deg.Rect))
}

func TestIconsForEveryCode(t *testing.T) {
	t.Parallel()
	for raw := range 100 {
		code, ok := model.ParseWeatherCode(raw)
		if !ok {
			continue
		}
		for _, hour := range []int{3, 12} {
			name, _ := code.Icon(hour)
			img := image.NewGray(image.Rect(0, 0, IconSize, IconSize))
			require.True(t, drawIcon(img, name, 0, 0), "icon %q", name)
			assert.Positive(t, inkIn(img, img.Rect), "icon %q", name)
		}
	}
	assert.False(t, drawIcon(image.NewGray(image.Rect(0, 0, 1, 1)), "tornado", 0, 0))
}

func TestFrameRegions(t *testing.T) {
	t.Parallel()
	f := NewFrame()
	img := f.Image().(*image.Gray)
	require.Zero(t, inkIn(img, img.Rect))

	f.DrawDate(time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC))
	assert.Positive(t, inkIn(img, image.Rect(0, 0, 42, 78)))

	f.DrawTodos([]model.Todo{"one", "two", "three", "four"})
	assert.Positive(t, inkIn(img, image.Rect(22, todoBottomY-26, 120, todoBottomY)))
	assert.Zero(t, inkIn(img, image.Rect(22, todoBottomY-4*todoLineStep-26, 120, todoBottomY-3*todoLineStep-2)))

	f.Reset()
	assert.Zero(t, inkIn(img, img.Rect))
}

func TestDrawEventsGroupsMonths(t *testing.T) {
	t.Parallel()
	ev := func(m time.Month, d int) model.Event {
		s := time.Date(2025, m, d, 10, 0, 0, 0, time.UTC)
		return model.Event{Start: s, End: s.Add(time.Hour), Summary: "x"}
	}
	events := []model.Event{ev(time.March, 30), ev(time.March, 31), ev(time.April, 1)}
	assert.Equal(t, []monthGroup{{time.March, 0, 1}, {time.April, 2, 2}}, groupByMonth(events))

	f := NewFrame()
	f.DrawEvents(events)
	img := f.Image().(*image.Gray)
	assert.Positive(t, inkIn(img, image.Rect(0, firstEventY, monthLineX+5, firstEventY+3*eventHeight+4)))
	assert.Zero(t, inkIn(img, image.Rect(0, firstEventY+4*eventHeight, Width, Height)))

	f.DrawEvents(nil)
}

func TestFormatSpan(t *testing.T) {
	t.Parallel()
	s := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "09:30 - 10:15", formatSpan(s, s.Add(45*time.Minute)))
	assert.Equal(t, "09:30 - Di, 04.03. 08:00", formatSpan(s, s.Add(22*time.Hour+30*time.Minute)))
}

func TestBatteryAndFault(t *testing.T) {
	t.Parallel()
	f := NewFrame()
	f.DrawBattery(model.BatteryStatus{Percent: 150})
	img := f.Image().(*image.Gray)
	corner := image.Rect(Width-80, Height-24, Width, Height)
	assert.Equal(t, inkIn(img, img.Rect), inkIn(img, corner))

	f.Reset()
	f.DrawFault("invalid state")
	assert.Positive(t, inkIn(img, image.Rect(0, Height/2-30, Width, Height/2+30)))
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	f := NewFrame()
	snap := Snapshot(f.Image())
	f.DrawFault("x")
	assert.Zero(t, inkIn(snap, snap.Rect))
	assert.Equal(t, f.Image().Bounds(), snap.Bounds())
}
