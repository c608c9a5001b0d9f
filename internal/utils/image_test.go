package utils

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.PNG"))
	assert.True(t, IsSupportedImage("dir/b.jpeg"))
	assert.True(t, IsSupportedImage("c.bmp"))
	assert.False(t, IsSupportedImage("d.gif"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestSaveLoadImage(t *testing.T) {
	dir := t.TempDir()
	src := solidImage(12, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	for _, ext := range []string{".png", ".bmp"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "sub", "frame"+ext)
			require.NoError(t, SaveImage(src, path))

			img, meta, err := LoadImage(path)
			require.NoError(t, err)
			assert.Equal(t, 12, meta.Width)
			assert.Equal(t, 8, meta.Height)
			assert.Positive(t, meta.SizeBytes)

			r, g, b, _ := img.At(3, 3).RGBA()
			assert.Equal(t, uint32(200), r>>8)
			assert.Equal(t, uint32(100), g>>8)
			assert.Equal(t, uint32(50), b>>8)
		})
	}
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	require.Error(t, err)

	_, _, err = LoadImage("picture.gif")
	var ipe *ImageProcessingError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))
	_, _, err = LoadImage(garbage)
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "decode", ipe.Operation)

	assert.Error(t, SaveImage(image.NewRGBA(image.Rect(0, 0, 1, 1)), "out.gif"))
}

func TestFitImage(t *testing.T) {
	src := solidImage(40, 20, color.RGBA{R: 255, A: 255})
	bg := color.RGBA{B: 255, A: 255}

	tests := []struct {
		mode FitMode
	}{
		{FitStretch}, {FitFill}, {FitPad},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got, err := FitImage(src, 30, 30, tt.mode, bg)
			require.NoError(t, err)
			assert.Equal(t, 30, got.Bounds().Dx())
			assert.Equal(t, 30, got.Bounds().Dy())
		})
	}

	padded, err := FitImage(src, 30, 30, FitPad, bg)
	require.NoError(t, err)
	_, _, b, _ := padded.At(15, 0).RGBA()
	assert.Equal(t, uint32(255), b>>8, "pad area uses the background")

	same, err := FitImage(src, 40, 20, FitFill, bg)
	require.NoError(t, err)
	assert.Same(t, src, same.(*image.RGBA))

	_, err = FitImage(nil, 1, 1, FitStretch, bg)
	assert.Error(t, err)
	_, err = FitImage(src, 0, 1, FitStretch, bg)
	assert.Error(t, err)
}

func TestParseFitMode(t *testing.T) {
	m, err := ParseFitMode("")
	require.NoError(t, err)
	assert.Equal(t, FitStretch, m)

	m, err = ParseFitMode("pad")
	require.NoError(t, err)
	assert.Equal(t, FitPad, m)

	_, err = ParseFitMode("zoom")
	assert.Error(t, err)
}

func TestViewportToPixel(t *testing.T) {
	b := image.Rect(0, 0, 101, 51)
	assert.Equal(t, image.Pt(0, 50), ViewportToPixel(geom.Pt(0, 0), b))
	assert.Equal(t, image.Pt(100, 0), ViewportToPixel(geom.Pt(1, 1), b))
	assert.Equal(t, image.Pt(50, 25), ViewportToPixel(geom.Pt(0.5, 0.5), b))
}

func TestDrawCorners(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 64, 64))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	DrawCorners(dst, geom.Canonical(), white, 1)

	assert.Equal(t, white, dst.RGBAAt(0, 63), "corner 0 is bottom-left")
	assert.Equal(t, white, dst.RGBAAt(32, 0), "top edge")
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(32, 32), "interior untouched")
}

func TestToRGBA(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	assert.Same(t, rgba, ToRGBA(rgba))

	gray := image.NewGray(image.Rect(5, 5, 7, 8))
	gray.SetGray(5, 5, color.Gray{Y: 77})
	out := ToRGBA(gray)
	assert.Equal(t, image.Rect(0, 0, 2, 3), out.Bounds())
	assert.Equal(t, uint8(77), out.RGBAAt(0, 0).R)
}
