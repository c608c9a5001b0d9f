package warp

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var background = color.RGBA{R: 0, G: 0, B: 255, A: 255}

func makeTestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / max(1, w-1)), G: uint8(y * 255 / max(1, h-1)), B: 0, A: 255})
		}
	}
	return img
}

func TestWarp_IdentityReproducesSource(t *testing.T) {
	src := makeTestImage(32, 24)
	out := Warp(src, geom.Identity(), effect.Params{Background: background}, 32, 24)

	require.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestWarp_EmptyOutput(t *testing.T) {
	out := Warp(makeTestImage(4, 4), geom.Identity(), effect.Params{}, 0, 10)
	assert.True(t, out.Bounds().Empty())
}

func TestWarp_OutsideIsBackground(t *testing.T) {
	src := makeTestImage(16, 16)
	// Shrink the displayed image into the lower-left quarter.
	corners := geom.CornerSet{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 0.5, Y: 0.5}, {X: 0, Y: 0.5}}
	h, err := homography.Solve(corners, geom.Canonical())
	require.NoError(t, err)

	out := Warp(src, h, effect.Params{Background: background}, 16, 16)

	assert.Equal(t, background, out.RGBAAt(15, 0), "top-right is outside the quad")
	assert.NotEqual(t, background, out.RGBAAt(2, 13), "bottom-left shows the source")
}

func TestWarp_EdgeSmoothness(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 40))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:i+4], []uint8{255, 255, 255, 255})
	}

	sharp := Warp(src, geom.Identity(), effect.Params{Background: background}, 40, 40)
	soft := Warp(src, geom.Identity(), effect.Params{Background: background, EdgeSmoothness: 0.5}, 40, 40)

	assert.Equal(t, white, sharp.RGBAAt(0, 20))
	edge := soft.RGBAAt(0, 20)
	assert.Greater(t, edge.B, edge.R, "border pixel leans towards the background")
	assert.Equal(t, white, soft.RGBAAt(20, 20), "centre is outside the blend band")
}

func TestSmoothstep(t *testing.T) {
	assert.InDelta(t, 0.0, smoothstep(0, 1, -1), 1e-12)
	assert.InDelta(t, 0.5, smoothstep(0, 1, 0.5), 1e-12)
	assert.InDelta(t, 1.0, smoothstep(0, 1, 2), 1e-12)
}

func TestRenderer_CachesUntilChanged(t *testing.T) {
	src := makeTestImage(8, 8)
	r := NewRenderer(8, 8)

	first := r.Render(src)
	assert.Same(t, first, r.Render(src))

	gen := r.Generation()
	r.SetParams(effect.Params{Background: background})
	assert.Greater(t, r.Generation(), gen)
	second := r.Render(src)
	assert.NotSame(t, first, second)

	r.SetHomography(geom.Identity().Scale(2))
	assert.True(t, r.Homography().ApproxEqual(geom.Identity().Scale(2), 0))
	assert.NotSame(t, second, r.Render(src))

	gen = r.Generation()
	r.Resize(8, 8)
	assert.Equal(t, gen, r.Generation(), "same size is not a change")
	r.Resize(4, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), r.Render(src).Bounds())
}

func TestGrid(t *testing.T) {
	g := Grid(80, 40, 4)
	assert.Equal(t, image.Rect(0, 0, 80, 40), g.Bounds())
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, g.RGBAAt(0, 0), "border")
	assert.Equal(t, color.RGBA{R: 230, G: 60, B: 40, A: 255}, g.RGBAAt(5, 35), "orientation marker bottom-left")
	assert.True(t, Grid(0, 0, 0).Bounds().Empty())
}
