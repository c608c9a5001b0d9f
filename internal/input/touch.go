package input

import (
	"maps"
	"slices"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
)

// TouchTracker diffs the set of live touches between ticks. New ids become
// downs, continuing ids become moves and ids that disappeared become ups.
type TouchTracker struct {
	live map[editor.PointerID]geom.Point
}

// NewTouchTracker creates an empty tracker.
func NewTouchTracker() *TouchTracker {
	return &TouchTracker{live: make(map[editor.PointerID]geom.Point)}
}

// Poll returns the events for this tick. Ups for vanished ids come first so
// that a corner released by one finger can be claimed by another landing in
// the same tick; downs and moves follow in ascending id order.
func (t *TouchTracker) Poll(touches map[editor.PointerID]geom.Point) []editor.PointerEvent {
	var events []editor.PointerEvent

	for _, id := range slices.Sorted(maps.Keys(t.live)) {
		if _, ok := touches[id]; ok {
			continue
		}
		events = append(events, editor.PointerEvent{ID: id, Phase: editor.PhaseUp, Position: t.live[id]})
		delete(t.live, id)
	}

	for _, id := range slices.Sorted(maps.Keys(touches)) {
		pos := touches[id]
		phase := editor.PhaseMove
		if _, ok := t.live[id]; !ok {
			phase = editor.PhaseDown
		}
		events = append(events, editor.PointerEvent{ID: id, Phase: phase, Position: pos})
		t.live[id] = pos
	}
	return events
}

// CancelAll emits a cancel for every live touch and forgets them. Touches
// still held afterwards come back as downs.
func (t *TouchTracker) CancelAll() []editor.PointerEvent {
	var events []editor.PointerEvent
	for _, id := range slices.Sorted(maps.Keys(t.live)) {
		events = append(events, editor.PointerEvent{ID: id, Phase: editor.PhaseCancel, Position: t.live[id]})
	}
	clear(t.live)
	return events
}
