package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/MeKo-Tech/keystone/internal/geom"
)

// ToRGBA returns img as *image.RGBA, copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// ViewportToPixel maps a viewport point (origin bottom-left) onto the pixel
// grid of bounds.
func ViewportToPixel(p geom.Point, bounds image.Rectangle) image.Point {
	x := float64(bounds.Min.X) + p.X*float64(bounds.Dx()-1)
	y := float64(bounds.Min.Y) + (1-p.Y)*float64(bounds.Dy()-1)
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// DrawCorners outlines the quadrilateral described by corners and marks each
// corner with a square handle.
func DrawCorners(dst *image.RGBA, corners geom.CornerSet, col color.Color, thickness int) {
	b := dst.Bounds()
	pts := make([]image.Point, len(corners))
	for i, c := range corners {
		pts[i] = ViewportToPixel(c, b)
	}
	DrawPolygon(dst, pts, col, thickness)
	for _, p := range pts {
		drawThickPoint(dst, p.X, p.Y, col, thickness*4+1)
	}
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.RGBA, pts []image.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		drawLine(dst, pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	r := max(thickness, 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
