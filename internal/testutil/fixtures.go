package testutil

import (
	"github.com/MeKo-Tech/keystone/internal/geom"
)

// QuadFixture is a named viewport quadrilateral together with the image of
// its centre under the correction that maps it onto the unit square.
type QuadFixture struct {
	Name    string
	Corners geom.CornerSet
	// Center is where the viewport point (0.5, 0.5) lands after correction.
	Center geom.Point
}

// Quads returns well-conditioned quadrilaterals used across tests.
func Quads() []QuadFixture {
	return []QuadFixture{
		{
			Name:    "canonical",
			Corners: geom.Canonical(),
			Center:  geom.Point{X: 0.5, Y: 0.5},
		},
		{
			Name: "inset",
			Corners: geom.CornerSet{
				{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.75, Y: 0.75}, {X: 0.25, Y: 0.75},
			},
			Center: geom.Point{X: 0.5, Y: 0.5},
		},
		{
			Name: "shifted",
			Corners: geom.CornerSet{
				{X: 0.1, Y: 0}, {X: 1.1, Y: 0}, {X: 1.1, Y: 1}, {X: 0.1, Y: 1},
			},
			Center: geom.Point{X: 0.4, Y: 0.5},
		},
		{
			Name: "keystone",
			Corners: geom.CornerSet{
				{X: 0.05, Y: 0.02}, {X: 0.97, Y: 0.04}, {X: 0.82, Y: 0.91}, {X: 0.15, Y: 0.88},
			},
		},
	}
}

// Quad returns the fixture with the given name.
func Quad(name string) (QuadFixture, bool) {
	for _, q := range Quads() {
		if q.Name == name {
			return q, true
		}
	}
	return QuadFixture{}, false
}
