package viewer

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// pulse oscillates between 0 and 1, easing in and out at both ends.
type pulse struct {
	tween  *gween.Tween
	half   float32
	rising bool
	value  float32
}

func newPulse(period float32) *pulse {
	p := &pulse{half: period / 2, rising: true}
	p.tween = gween.New(0, 1, p.half, ease.InOutSine)
	return p
}

// Update advances the pulse by dt seconds and returns its value.
func (p *pulse) Update(dt float32) float32 {
	v, done := p.tween.Update(dt)
	p.value = v
	if done {
		p.rising = !p.rising
		from, to := float32(1), float32(0)
		if p.rising {
			from, to = 0, 1
		}
		p.tween = gween.New(from, to, p.half, ease.InOutSine)
	}
	return p.value
}

// Value returns the last computed value.
func (p *pulse) Value() float32 { return p.value }
