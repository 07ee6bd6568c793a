package epd

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"homedash/internal/convert"
	appLog "homedash/internal/log"
)

// PreviewFile is the name of the PNG the preview panel keeps current.
const PreviewFile = "frame.png"

// PreviewPanel stands in for hardware during development: every update is
// written to Dir/frame.png.
type PreviewPanel struct {
	Dir string

	mu     sync.Mutex
	awake  bool
	frames int
}

func NewPreviewPanel(dir string) (*PreviewPanel, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("epd: preview dir: %w", err)
	}
	return &PreviewPanel{Dir: dir}, nil
}

func (p *PreviewPanel) Wake(context.Context) error {
	p.mu.Lock()
	p.awake = true
	p.mu.Unlock()
	return nil
}

// Clear writes a blank landscape frame.
func (p *PreviewPanel) Clear(context.Context) error {
	img := image.NewGray(image.Rect(0, 0, convert.PanelWidth, convert.PanelHeight))
	draw.Draw(img, img.Rect, image.White, image.Point{}, draw.Src)
	return p.write(img)
}

func (p *PreviewPanel) UpdateAndDisplay(ctx context.Context, frame image.Image) error {
	p.mu.Lock()
	awake := p.awake
	p.mu.Unlock()
	if !awake {
		return fmt.Errorf("epd: preview panel is asleep")
	}
	return p.write(frame)
}

// write replaces the preview atomically so readers never see a partial PNG.
func (p *PreviewPanel) write(img image.Image) error {
	tmp, err := os.CreateTemp(p.Dir, ".frame-*.png")
	if err != nil {
		return fmt.Errorf("epd: preview: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("epd: preview encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("epd: preview: %w", err)
	}
	path := filepath.Join(p.Dir, PreviewFile)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("epd: preview: %w", err)
	}

	p.mu.Lock()
	p.frames++
	n := p.frames
	p.mu.Unlock()
	appLog.Debug("preview frame written", "path", path, "frame", n)
	return nil
}

func (p *PreviewPanel) WaitUntilIdle(context.Context) error { return nil }

func (p *PreviewPanel) Sleep(context.Context) error {
	p.mu.Lock()
	p.awake = false
	p.mu.Unlock()
	return nil
}

// Frames is the number of frames written so far.
func (p *PreviewPanel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}
