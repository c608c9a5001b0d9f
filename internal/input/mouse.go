// Package input turns polled device state into the abstract pointer events
// consumed by the corner editor.
package input

import (
	"math/rand/v2"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
)

// IDSource produces a fresh pointer id for every mouse press.
type IDSource func() editor.PointerID

// mouseIDBase keeps emulated ids clear of the small integers touch screens use.
const mouseIDBase = 1 << 32

// RandomIDs draws ids from math/rand/v2 above the touch id range.
func RandomIDs() editor.PointerID {
	return editor.PointerID(mouseIDBase + rand.Int64N(1<<31))
}

// MouseEmulator synthesizes a single pseudo-touch stream from a mouse button:
// press -> down with a fresh id, hold -> move, release -> up. At most one
// synthetic pointer is live at a time.
type MouseEmulator struct {
	next    IDSource
	id      editor.PointerID
	pressed bool
}

// NewMouseEmulator creates an emulator. A nil source selects RandomIDs.
func NewMouseEmulator(src IDSource) *MouseEmulator {
	if src == nil {
		src = RandomIDs
	}
	return &MouseEmulator{next: src}
}

// Poll converts the current button state into at most one event.
func (m *MouseEmulator) Poll(pressed bool, pos geom.Point) (editor.PointerEvent, bool) {
	var phase editor.Phase
	switch {
	case pressed && !m.pressed:
		m.id = m.next()
		phase = editor.PhaseDown
	case !pressed && m.pressed:
		phase = editor.PhaseUp
	case pressed:
		phase = editor.PhaseMove
	default:
		return editor.PointerEvent{}, false
	}
	m.pressed = pressed
	return editor.PointerEvent{ID: m.id, Phase: phase, Position: pos}, true
}

// Active reports whether the synthetic pointer is down, and its id.
func (m *MouseEmulator) Active() (editor.PointerID, bool) {
	return m.id, m.pressed
}

// Cancel abandons a live synthetic pointer. If the button is still held the
// next Poll starts a new press with a fresh id.
func (m *MouseEmulator) Cancel() (editor.PointerEvent, bool) {
	id, active := m.Active()
	if !active {
		return editor.PointerEvent{}, false
	}
	m.pressed = false
	return editor.PointerEvent{ID: id, Phase: editor.PhaseCancel}, true
}
