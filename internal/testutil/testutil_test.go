package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.True(t, DirExists(filepath.Join(root, "internal")))
}

func TestStorePath(t *testing.T) {
	path := StorePath(t)
	assert.Equal(t, "corners.yaml", filepath.Base(path))
	assert.False(t, FileExists(path))
	assert.True(t, DirExists(filepath.Dir(path)))
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, t.TempDir(), "nested/dir/file.txt", []byte("x"))
	assert.True(t, FileExists(path))
	assert.False(t, DirExists(path))
}

func TestQuadsAreConsistent(t *testing.T) {
	for _, q := range Quads() {
		t.Run(q.Name, func(t *testing.T) {
			got, ok := Quad(q.Name)
			require.True(t, ok)
			assert.Equal(t, q, got)

			h, err := homography.Solve(q.Corners, geom.Canonical())
			require.NoError(t, err)
			for i, c := range q.Corners {
				mapped := homography.Transform(h, c)
				assert.InDelta(t, geom.Canonical()[i].X, mapped.X, 1e-6)
				assert.InDelta(t, geom.Canonical()[i].Y, mapped.Y, 1e-6)
			}
			if q.Name == "keystone" {
				return
			}
			center := homography.Transform(h, geom.Point{X: 0.5, Y: 0.5})
			assert.InDelta(t, q.Center.X, center.X, 1e-6)
			assert.InDelta(t, q.Center.Y, center.Y, 1e-6)
		})
	}
	_, ok := Quad("missing")
	assert.False(t, ok)
}

func TestImages(t *testing.T) {
	img := QuadrantImage(4, 4)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, ColorAt(img, 0, 0))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, ColorAt(img, 3, 0))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, ColorAt(img, 0, 3))

	path := SaveImage(t, img, t.TempDir(), "quad.png")
	loaded := LoadImage(t, path)
	assert.True(t, CompareImages(img, loaded, 0))
	assert.False(t, CompareImages(img, SolidImage(4, 4, color.Black), 0.1))
	assert.False(t, CompareImages(img, SolidImage(5, 4, color.Black), 1))

	label := LabelImage("keystone", 80, 20)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, ColorAt(label, 0, 0))
	assert.False(t, CompareImages(label, SolidImage(80, 20, color.White), 0))
}
