package photo_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bough38-web/inspection-app/internal/photo"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name             string
		width, height    int
		expectW, expectH int
	}{
		{name: "Широкое уменьшается", width: 2560, height: 1440, expectW: 1280, expectH: 720},
		{name: "Высокое уменьшается", width: 1000, height: 2000, expectW: 640, expectH: 1280},
		{name: "Маленькое не увеличивается", width: 300, height: 200, expectW: 300, expectH: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := photo.Normalize(bytes.NewReader(makePNG(t, tt.width, tt.height)))
			require.NoError(t, err)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tt.expectW, cfg.Width)
			assert.Equal(t, tt.expectH, cfg.Height)
		})
	}

	t.Run("Не изображение", func(t *testing.T) {
		_, err := photo.Normalize(strings.NewReader("definitely not an image"))
		require.ErrorIs(t, err, photo.ErrUnsupported)
	})
}

func TestThumbnail(t *testing.T) {
	var src bytes.Buffer
	require.NoError(t, jpeg.Encode(&src, image.NewGray(image.Rect(0, 0, 640, 480)), nil))

	out, err := photo.Thumbnail(src.Bytes())
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)

	_, err = photo.Thumbnail([]byte{0x00, 0x01})
	require.ErrorIs(t, err, photo.ErrUnsupported)
}
