package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SolidImage returns a width x height image filled with c.
func SolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// QuadrantImage colours the four quadrants differently so that flips and
// rotations show up in pixel checks. Top-left is red, top-right green,
// bottom-left blue and bottom-right white.
func QuadrantImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			var c color.RGBA
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{R: 255, A: 255}
			case y < height/2:
				c = color.RGBA{G: 255, A: 255}
			case x < width/2:
				c = color.RGBA{B: 255, A: 255}
			default:
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// LabelImage draws text centred on a white background.
func LabelImage(text string, width, height int) *image.RGBA {
	img := SolidImage(width, height, color.White)
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((width-textWidth)/2, (height+textHeight)/2)
	drawer.DrawString(text)
	return img
}

// SaveImage encodes img to dir/name, choosing the format from the extension.
func SaveImage(t *testing.T, img image.Image, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
	return path
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}

// ColorAt returns the 8-bit colour of img at (x, y).
func ColorAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

// CompareImages reports whether the mean per-pixel distance between the two
// images, relative to the largest possible distance, is within tolerance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds := img1.Bounds()
	if bounds.Size() != img2.Bounds().Size() {
		return false
	}
	off := img2.Bounds().Min.Sub(bounds.Min)

	var totalDiff float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x+off.X, y+off.Y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)
			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}

	pixels := float64(bounds.Dx() * bounds.Dy())
	if pixels == 0 {
		return true
	}
	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return totalDiff/pixels/maxDiff <= tolerance
}
