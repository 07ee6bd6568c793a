// Package render draws the dashboard into an in-memory grayscale frame.
//
// The frame is portrait, white on black, and laid out for a 7.5" panel
// mounted upright.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"time"

	appLog "homedash/internal/log"
	"homedash/internal/model"
)

const (
	Width  = 480
	Height = 800
)

// Layout of the header row.
const (
	slotWidth   = 72
	hourlySlots = 3
	dailyOffset = hourlySlots*slotWidth + 5
)

// Layout of the event list.
const (
	monthColX    = 6
	monthLineX   = 20
	dayColX      = 40
	eventColX    = 72
	eventHeight  = 60
	firstEventY  = 78
	todoBottomY  = 790
	todoLineStep = 28
	maxTodos     = 3
)

var weekdays = [...]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"}

var months = [...]string{"JAN", "FEB", "MÄR", "APR", "MAI", "JUN", "JUL", "AUG", "SEP", "OKT", "NOV", "DEZ"}

func weekday(t time.Time) string { return weekdays[t.Weekday()] }

func month(m time.Month) string {
	if m < time.January || m > time.December {
		return "???"
	}
	return months[m-1]
}

// Frame is one dashboard image. It is not safe for concurrent use.
type Frame struct {
	img *image.Gray
}

func NewFrame() *Frame {
	f := &Frame{img: image.NewGray(image.Rect(0, 0, Width, Height))}
	f.Reset()
	return f
}

// Reset clears the frame to black.
func (f *Frame) Reset() {
	draw.Draw(f.img, f.img.Rect, image.Black, image.Point{}, draw.Src)
}

// Image returns the live frame buffer.
func (f *Frame) Image() image.Image { return f.img }

// DrawDate draws the two-digit day above the two-digit month in the top-left
// corner.
func (f *Frame) DrawDate(t time.Time) {
	drawText(f.img, image.Pt(0, 0), fmt.Sprintf("%02d", t.Day()), huge, alignLeft, baselineTop)
	drawText(f.img, image.Pt(0, glyphHeight*huge), fmt.Sprintf("%02d", int(t.Month())), huge, alignLeft, baselineTop)
}

// DrawHourly draws up to three hourly slots.
func (f *Frame) DrawHourly(items []model.HourlyForecast) {
	for i, h := range items[:min(len(items), hourlySlots)] {
		x := (i + 1) * slotWidth
		drawText(f.img, image.Pt(x, 3), fmt.Sprintf("%02d:00", h.Hour), small, alignCenter, baselineTop)
		f.icon(h.Code, h.Hour, x-IconSize/2, 17)
		drawText(f.img, image.Pt(x, 54), formatTemp(h.Temperature), small, alignCenter, baselineTop)
	}
}

// DrawDaily draws up to three daily slots right of a separator.
func (f *Frame) DrawDaily(items []model.DailyForecast) {
	sep := hourlySlots*slotWidth + 39
	line(f.img, sep, 8, sep, 50, white)
	for i, d := range items[:min(len(items), hourlySlots)] {
		x := (i+1)*slotWidth + dailyOffset
		drawText(f.img, image.Pt(x, 3), weekday(d.Date), small, alignCenter, baselineTop)
		f.icon(d.Code, 12, x-IconSize/2, 17)
		drawText(f.img, image.Pt(x, 54), formatTemp(d.Min)+"/"+formatTemp(d.Max), small, alignCenter, baselineTop)
	}
}

func (f *Frame) icon(code model.WeatherCode, hour, x, y int) {
	name, ok := code.Icon(hour)
	if !ok {
		appLog.Warn("no icon for weather code", "code", code.String())
	}
	drawIcon(f.img, name, x, y)
}

type monthGroup struct {
	month      time.Month
	start, end int
}

func groupByMonth(events []model.Event) []monthGroup {
	var groups []monthGroup
	for i, e := range events {
		m := e.Start.Month()
		if n := len(groups); n > 0 && groups[n-1].month == m {
			groups[n-1].end = i
			continue
		}
		groups = append(groups, monthGroup{month: m, start: i, end: i})
	}
	return groups
}

// DrawEvents draws the event list, bracketed by vertical month labels.
// events are expected in display order.
func (f *Frame) DrawEvents(events []model.Event) {
	for _, g := range groupByMonth(events) {
		startY := firstEventY + g.start*eventHeight
		endY := firstEventY + (g.end+1)*eventHeight

		line(f.img, monthLineX, startY+14, monthLineX, endY+2, white)
		line(f.img, monthLineX, startY+14, monthLineX+4, startY+14, white)
		line(f.img, monthLineX, endY+2, monthLineX+4, endY+2, white)

		label := []rune(month(g.month))
		top := startY + 12 + ((endY+6)-(startY+12)-len(label)*glyphHeight)/2
		for i, r := range label {
			drawText(f.img, image.Pt(monthColX, top+i*glyphHeight), string(r), small, alignCenter, baselineTop)
		}
	}

	for i, e := range events {
		y := firstEventY + i*eventHeight
		drawText(f.img, image.Pt(dayColX, y+20), fmt.Sprintf("%02d", e.Start.Day()), large, alignCenter, baselineTop)
		drawText(f.img, image.Pt(dayColX, y+46), weekday(e.Start), small, alignCenter, baselineTop)
		drawText(f.img, image.Pt(eventColX, y+20), e.Summary, large, alignLeft, baselineTop)
		drawText(f.img, image.Pt(eventColX, y+46), formatSpan(e.Start, e.End), small, alignLeft, baselineTop)
	}
}

func formatSpan(start, end time.Time) string {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy == ey && sm == em && sd == ed {
		return start.Format("15:04") + " - " + end.Format("15:04")
	}
	return start.Format("15:04") + " - " + weekday(end) + ", " + end.Format("02.01. 15:04")
}

// DrawTodos draws up to three todos with checkboxes, the first one lowest.
func (f *Frame) DrawTodos(items []model.Todo) {
	y := todoBottomY
	for _, t := range items[:min(len(items), maxTodos)] {
		box := image.Rect(0, y-18, 12, y-6)
		roundedRect(f.img, box, 2, white)
		drawText(f.img, image.Pt(22, y), string(t), large, alignLeft, baselineBottom)
		y -= todoLineStep
	}
}

// DrawBattery draws a battery outline and charge in the bottom-right corner.
func (f *Frame) DrawBattery(st model.BatteryStatus) {
	pct := max(0, min(st.Percent, 100))
	body := image.Rect(Width-26, Height-20, Width-4, Height-8)
	roundedRect(f.img, body, 1, white)
	fillRect(f.img, image.Rect(Width-4, Height-17, Width-2, Height-11), white)
	fillRect(f.img, image.Rect(body.Min.X+2, body.Min.Y+2, body.Min.X+2+pct*(body.Dx()-4)/100, body.Max.Y-2), white)

	label := fmt.Sprintf("%d%%", pct)
	drawText(f.img, image.Pt(body.Min.X-4-textWidth(label, small), Height-7), label, small, alignLeft, baselineBottom)
}

// DrawFault draws a boxed notice across the middle of the frame.
func (f *Frame) DrawFault(msg string) {
	w := textWidth(msg, large) + 24
	h := glyphHeight*large + 24
	box := image.Rect((Width-w)/2, (Height-h)/2, (Width+w)/2, (Height+h)/2)
	fillRect(f.img, box, black)
	roundedRect(f.img, box, 4, white)
	drawText(f.img, image.Pt(Width/2, box.Min.Y+12), msg, large, alignCenter, baselineTop)
}

// formatTemp renders whole degrees; values that would print as "-0" print
// as "0".
func formatTemp(v float64) string {
	if v > -1 && v <= 0 || math.IsNaN(v) {
		v = 0
	}
	return fmt.Sprintf("%.0f°C", v)
}

// Snapshot copies img into a new grayscale image.
func Snapshot(img image.Image) *image.Gray {
	out := image.NewGray(img.Bounds())
	draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	return out
}
