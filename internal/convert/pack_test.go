package convert

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackLandscape(t *testing.T) {
	t.Parallel()
	img := image.NewGray(image.Rect(0, 0, PanelWidth, PanelHeight))
	img.SetGray(0, 0, color.Gray{Y: 0xff})
	img.SetGray(9, 0, color.Gray{Y: 0x80})
	img.SetGray(799, 479, color.Gray{Y: 0xff})
	img.SetGray(1, 0, color.Gray{Y: 0x7f})

	out, err := PackGray(img, false)
	require.NoError(t, err)
	require.Len(t, out, 48000)
	assert.Equal(t, byte(0x80), out[0])
	assert.Equal(t, byte(0x40), out[1])
	assert.Equal(t, byte(0x01), out[len(out)-1])
}

func TestPackRotatesClockwise(t *testing.T) {
	t.Parallel()
	img := image.NewGray(image.Rect(0, 0, PanelHeight, PanelWidth))
	// Top-left of the portrait frame lands top-right on the panel.
	img.SetGray(0, 0, color.Gray{Y: 0xff})
	// Bottom-left lands top-left.
	img.SetGray(0, PanelWidth-1, color.Gray{Y: 0xff})

	out, err := PackGray(img, true)
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), out[0])
	assert.Equal(t, byte(0x01), out[PanelByteStride-1])
	assert.Zero(t, out[PanelByteStride])
}

func TestPackRejectsWrongSize(t *testing.T) {
	t.Parallel()
	_, err := PackGray(image.NewGray(image.Rect(0, 0, PanelWidth, PanelHeight)), true)
	assert.Error(t, err)
	_, err = PackGray(image.NewGray(image.Rect(0, 0, 10, 10)), false)
	assert.Error(t, err)
}

func TestPackNonGray(t *testing.T) {
	t.Parallel()
	img := image.NewRGBA(image.Rect(0, 0, PanelWidth, PanelHeight))
	img.Set(8, 0, color.White)
	out, err := PackGray(img, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), out[1])
	assert.Zero(t, out[0])
}
