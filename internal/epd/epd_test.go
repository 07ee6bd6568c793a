package epd

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"homedash/internal/config"
	"homedash/internal/convert"
)

type tx struct {
	dc   gpio.Level
	data []byte
}

type recordConn struct {
	mu  sync.Mutex
	dc  *gpiotest.Pin
	txs []tx
}

func (c *recordConn) Tx(w, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs = append(c.txs, tx{dc: c.dc.Read(), data: append([]byte(nil), w...)})
	return nil
}

// commands returns the command bytes with the number of data bytes that
// followed each.
func (c *recordConn) commands() ([]byte, []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var cmds []byte
	var sizes []int
	for _, t := range c.txs {
		if t.dc == gpio.Low {
			cmds = append(cmds, t.data[0])
			sizes = append(sizes, 0)
			continue
		}
		sizes[len(sizes)-1] += len(t.data)
	}
	return cmds, sizes
}

func newTestDriver() (*Driver7in5V2, *recordConn, *gpiotest.Pin) {
	dc := &gpiotest.Pin{N: "DC"}
	busy := &gpiotest.Pin{N: "BUSY", L: gpio.High}
	conn := &recordConn{dc: dc}
	d := NewDriver7in5V2(&Dev{SPI: conn, DC: dc, RST: &gpiotest.Pin{N: "RST"}, Busy: busy})
	d.Delay = func(time.Duration) {}
	return d, conn, busy
}

func TestDriverWakeSequence(t *testing.T) {
	t.Parallel()
	d, conn, _ := newTestDriver()
	require.NoError(t, d.Wake(context.Background()))

	cmds, sizes := conn.commands()
	assert.Equal(t, []byte{cmdPowerSetting, cmdPowerOn, cmdGetStatus, cmdPanelSetting, cmdResolution, cmdDualSPI, cmdVcomInterval, cmdTCON}, cmds)
	assert.Equal(t, []int{4, 0, 0, 1, 4, 1, 2, 1}, sizes)
}

func TestDriverUpdateAndDisplay(t *testing.T) {
	t.Parallel()
	d, conn, _ := newTestDriver()

	frame := image.NewGray(image.Rect(0, 0, convert.PanelHeight, convert.PanelWidth))
	frame.SetGray(0, convert.PanelWidth-1, color.Gray{Y: 0xff})
	require.NoError(t, d.UpdateAndDisplay(context.Background(), frame))

	cmds, sizes := conn.commands()
	assert.Equal(t, []byte{cmdOldData, cmdNewData, cmdRefresh}, cmds)
	assert.Equal(t, []int{convert.PackedSize(), convert.PackedSize(), 0}, sizes)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	for _, rec := range conn.txs {
		assert.LessOrEqual(t, len(rec.data), maxChunk)
	}
	// First data chunk of the old plane, then of the inverted new plane.
	assert.Equal(t, byte(0x80), conn.txs[1].data[0])
	newStart := 1 + (convert.PackedSize()+maxChunk-1)/maxChunk + 1
	assert.Equal(t, byte(0x7f), conn.txs[newStart].data[0])
}

func TestDriverRejectsWrongFrame(t *testing.T) {
	t.Parallel()
	d, _, _ := newTestDriver()
	err := d.UpdateAndDisplay(context.Background(), image.NewGray(image.Rect(0, 0, 10, 20)))
	assert.Error(t, err)
}

func TestDriverWaitHonoursContext(t *testing.T) {
	t.Parallel()
	d, _, busy := newTestDriver()
	require.NoError(t, busy.Out(gpio.Low))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.WaitUntilIdle(ctx), context.DeadlineExceeded)

	require.NoError(t, busy.Out(gpio.High))
	assert.NoError(t, d.WaitUntilIdle(context.Background()))
}

func TestDriverSleep(t *testing.T) {
	t.Parallel()
	d, conn, _ := newTestDriver()
	require.NoError(t, d.Sleep(context.Background()))
	cmds, sizes := conn.commands()
	assert.Equal(t, []byte{cmdPowerOff, cmdGetStatus, cmdDeepSleep}, cmds)
	assert.Equal(t, []int{0, 0, 1}, sizes)
}

type fakeHat struct {
	bounds image.Rectangle
	calls  []string
	drawn  image.Image
}

func (f *fakeHat) Init() error { f.calls = append(f.calls, "init"); return nil }
func (f *fakeHat) Clear(color.Color) error { f.calls = append(f.calls, "clear"); return nil }
func (f *fakeHat) Sleep() error { f.calls = append(f.calls, "sleep"); return nil }
func (f *fakeHat) Bounds() image.Rectangle { return f.bounds }
func (f *fakeHat) Draw(r image.Rectangle, src image.Image, _ image.Point) error {
	f.calls = append(f.calls, "draw")
	f.drawn = src
	return nil
}

func TestHatAdapter(t *testing.T) {
	t.Parallel()
	dev := &fakeHat{bounds: image.Rect(0, 0, 122, 250)}
	h := &Hat2in13V4{dev: dev}
	ctx := context.Background()

	require.NoError(t, h.Wake(ctx))
	require.NoError(t, h.Clear(ctx))
	frame := image.NewGray(image.Rect(0, 0, 480, 800))
	for x := range 480 {
		frame.SetGray(x, 400, color.Gray{Y: 0xff})
	}
	require.NoError(t, h.UpdateAndDisplay(ctx, frame))
	require.NoError(t, h.WaitUntilIdle(ctx))
	require.NoError(t, h.Sleep(ctx))

	assert.Equal(t, []string{"init", "clear", "draw", "sleep"}, dev.calls)
	assert.Equal(t, dev.bounds, dev.drawn.Bounds())
}

func TestFitFrameKeepsAspect(t *testing.T) {
	t.Parallel()
	src := image.NewGray(image.Rect(0, 0, 480, 800))
	for y := range 800 {
		for x := range 480 {
			src.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	out := fitFrame(src, image.Rect(0, 0, 122, 250))
	// 480x800 fits as 122x203, leaving black bands above and below.
	assert.Equal(t, color.Gray{Y: 0}, color.GrayModel.Convert(out.At(60, 2)))
	assert.Equal(t, color.Gray{Y: 0xff}, color.GrayModel.Convert(out.At(60, 125)))
}

func TestPreviewPanel(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p, err := NewPreviewPanel(dir)
	require.NoError(t, err)
	ctx := context.Background()

	frame := image.NewGray(image.Rect(0, 0, 480, 800))
	assert.Error(t, p.UpdateAndDisplay(ctx, frame), "asleep panel rejects frames")

	require.NoError(t, p.Wake(ctx))
	require.NoError(t, p.UpdateAndDisplay(ctx, frame))
	require.NoError(t, p.WaitUntilIdle(ctx))
	require.NoError(t, p.Sleep(ctx))
	assert.Equal(t, 1, p.Frames())

	f, err := os.Open(filepath.Join(dir, PreviewFile))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, frame.Bounds(), img.Bounds())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestOpenSelectsModel(t *testing.T) {
	t.Parallel()
	p, err := Open(config.DisplayConfig{Model: "preview", PreviewDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &PreviewPanel{}, p)

	_, err = Open(config.DisplayConfig{Model: "13in3"})
	assert.Error(t, err)
}
