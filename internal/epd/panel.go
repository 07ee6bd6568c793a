// Package epd drives the e-paper panel the dashboard is shown on.
package epd

import (
	"context"
	"fmt"
	"image"

	"homedash/internal/config"
)

// Panel is a bistable display. Wake must precede UpdateAndDisplay after a
// Sleep. UpdateAndDisplay may return before the refresh has finished;
// WaitUntilIdle blocks until it has.
type Panel interface {
	Clear(ctx context.Context) error
	Wake(ctx context.Context) error
	UpdateAndDisplay(ctx context.Context, frame image.Image) error
	WaitUntilIdle(ctx context.Context) error
	Sleep(ctx context.Context) error
}

// Open builds the panel selected by cfg.Model.
func Open(cfg config.DisplayConfig) (Panel, error) {
	var (
		p   Panel
		err error
	)
	switch cfg.Model {
	case "7in5v2":
		p, err = Open7in5V2(cfg)
	case "2in13v4":
		p, err = OpenHat2in13V4(cfg.SPIPort)
	case "preview", "":
		p, err = NewPreviewPanel(cfg.PreviewDir)
	default:
		return nil, fmt.Errorf("epd: unknown display model %q", cfg.Model)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
