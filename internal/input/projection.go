package input

import "github.com/MeKo-Tech/keystone/internal/geom"

// ScreenProjection maps pixel coordinates on a Width x Height surface to
// viewport space. FlipY is set for surfaces whose origin is the top-left,
// since viewport space has its origin at the bottom-left.
type ScreenProjection struct {
	Width  float64
	Height float64
	FlipY  bool
}

// ScreenToViewport implements editor.Projection.
func (s ScreenProjection) ScreenToViewport(p geom.Point) geom.Point {
	if s.Width <= 0 || s.Height <= 0 {
		return p
	}
	v := geom.Point{X: p.X / s.Width, Y: p.Y / s.Height}
	if s.FlipY {
		v.Y = 1 - v.Y
	}
	return v
}

// ViewportToScreen is the inverse of ScreenToViewport.
func (s ScreenProjection) ViewportToScreen(v geom.Point) geom.Point {
	if s.Width <= 0 || s.Height <= 0 {
		return v
	}
	y := v.Y
	if s.FlipY {
		y = 1 - y
	}
	return geom.Point{X: v.X * s.Width, Y: y * s.Height}
}
