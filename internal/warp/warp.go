// Package warp is a CPU reference renderer for the keystone correction.
package warp

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
)

// Warp renders src through h into a w x hgt image. Each output pixel centre
// is taken in viewport space (origin bottom-left), mapped by h, and the
// source is sampled bilinearly at the result. Samples that land outside the
// unit square take the background colour.
func Warp(src image.Image, h geom.Matrix, p effect.Params, w, hgt int) *image.RGBA {
	if w <= 0 || hgt <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}
	out := image.NewRGBA(image.Rect(0, 0, w, hgt))
	bg := toRGBA(p.Background)
	band := p.EdgeSmoothness * 0.5

	for y := range hgt {
		v := 1 - (float64(y)+0.5)/float64(hgt)
		row := out.Pix[y*out.Stride:]
		for x := range w {
			u := (float64(x) + 0.5) / float64(w)

			c := bg
			if uv, ok := h.Apply(geom.Point{X: u, Y: v}); ok && inUnitSquare(uv) {
				c = sampleViewport(src, uv)
				if band > 0 {
					c = blend(bg, c, smoothstep(0, band, borderDistance(uv)))
				}
			}

			i := x * 4
			row[i+0] = uint8(c.R + 0.5)
			row[i+1] = uint8(c.G + 0.5)
			row[i+2] = uint8(c.B + 0.5)
			row[i+3] = uint8(c.A + 0.5)
		}
	}
	return out
}

// sampleViewport samples src at a viewport coordinate, treating the unit
// square as covering the pixel grid edge to edge.
func sampleViewport(src image.Image, uv geom.Point) rgba {
	b := src.Bounds()
	sx := uv.X*float64(b.Dx()) - 0.5
	sy := (1-uv.Y)*float64(b.Dy()) - 0.5
	return bilinearSample(src, clamp(sx, 0, float64(b.Dx()-1))+float64(b.Min.X),
		clamp(sy, 0, float64(b.Dy()-1))+float64(b.Min.Y))
}

func bilinearSample(src image.Image, x, y float64) rgba {
	b := src.Bounds()
	x0 := int(x)
	y0 := int(y)
	x1 := min(x0+1, b.Max.X-1)
	y1 := min(y0+1, b.Max.Y-1)
	fx := x - float64(x0)
	fy := y - float64(y0)
	c00 := toRGBA(src.At(x0, y0))
	c10 := toRGBA(src.At(x1, y0))
	c01 := toRGBA(src.At(x0, y1))
	c11 := toRGBA(src.At(x1, y1))
	return rgba{
		R: lerp(lerp(c00.R, c10.R, fx), lerp(c01.R, c11.R, fx), fy),
		G: lerp(lerp(c00.G, c10.G, fx), lerp(c01.G, c11.G, fx), fy),
		B: lerp(lerp(c00.B, c10.B, fx), lerp(c01.B, c11.B, fx), fy),
		A: lerp(lerp(c00.A, c10.A, fx), lerp(c01.A, c11.A, fx), fy),
	}
}

type rgba struct{ R, G, B, A float64 }

func toRGBA(c color.Color) rgba {
	r, g, b, a := c.RGBA()
	return rgba{R: float64(r >> 8), G: float64(g >> 8), B: float64(b >> 8), A: float64(a >> 8)}
}

func blend(a, b rgba, t float64) rgba {
	return rgba{R: lerp(a.R, b.R, t), G: lerp(a.G, b.G, t), B: lerp(a.B, b.B, t), A: lerp(a.A, b.A, t)}
}

func inUnitSquare(p geom.Point) bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

func borderDistance(p geom.Point) float64 {
	return min(p.X, 1-p.X, p.Y, 1-p.Y)
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp(v, lo, hi float64) float64 { return max(lo, min(v, hi)) }
