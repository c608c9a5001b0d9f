package viewer

import (
	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/input"
)

// pointers merges the emulated mouse and the touch screen into one event
// stream. It holds no ebiten state so it can be driven from tests.
type pointers struct {
	mouse   *input.MouseEmulator
	touches *input.TouchTracker
}

func newPointers(ids input.IDSource) *pointers {
	return &pointers{mouse: input.NewMouseEmulator(ids), touches: input.NewTouchTracker()}
}

// poll returns the mouse event, if any, followed by the touch events.
func (p *pointers) poll(pressed bool, cursor geom.Point, live map[editor.PointerID]geom.Point) []editor.PointerEvent {
	var events []editor.PointerEvent
	if ev, ok := p.mouse.Poll(pressed, cursor); ok {
		events = append(events, ev)
	}
	return append(events, p.touches.Poll(live)...)
}

// release cancels every live pointer. Anything still held re-enters as a
// down on the next poll.
func (p *pointers) release() []editor.PointerEvent {
	var events []editor.PointerEvent
	if ev, ok := p.mouse.Cancel(); ok {
		events = append(events, ev)
	}
	return append(events, p.touches.CancelAll()...)
}
