package cmd

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarpCommandGrid(t *testing.T) {
	out := filepath.Join(t.TempDir(), "grid.png")

	output, err := executeCommandAndCaptureOutput(t, "warp", out, "--width", "40", "--height", "30")
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote 40x30 image")

	img, meta, err := utils.LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, 30, meta.Height)
	assert.NotNil(t, img)
}

func TestWarpCommandInputImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")

	src := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := range 10 {
		for x := range 20 {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	require.NoError(t, utils.SaveImage(src, in))

	_, err := executeCommandAndCaptureOutput(t, "warp", in, out,
		"--corners", "0.25,0.25 0.75,0.25 0.75,0.75 0.25,0.75",
		"--background", "#0000FF")
	require.NoError(t, err)

	img, meta, err := utils.LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, 20, meta.Width)
	assert.Equal(t, 10, meta.Height)

	// The image is shrunk into the middle; the border shows the background.
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff}, []uint32{r, g, b})
	r, _, b, _ = img.At(10, 5).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0), b)
}

func TestWarpCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "unsupported output",
			args:    []string{"warp", filepath.Join(dir, "out.gif")},
			wantErr: "unsupported output format",
		},
		{
			name:    "missing input",
			args:    []string{"warp", filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.png")},
			wantErr: "load",
		},
		{
			name:    "bad corners",
			args:    []string{"warp", filepath.Join(dir, "out.png"), "--corners", "0,0 1,1"},
			wantErr: "invalid --corners",
		},
		{
			name:    "bad fit",
			args:    []string{"warp", filepath.Join(dir, "out.png"), "--fit", "squeeze"},
			wantErr: "squeeze",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommandAndCaptureOutput(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
