package editor

// pointerTracker maps live pointer ids to the corner each one drags.
// A pointer maps to at most one corner and a corner is owned by at most one
// pointer; the first claim wins.
type pointerTracker struct {
	corners map[PointerID]int
	owners  [cornerCount]PointerID
	owned   [cornerCount]bool
}

func newPointerTracker() pointerTracker {
	return pointerTracker{corners: make(map[PointerID]int)}
}

// registered reports whether id is live.
func (t *pointerTracker) registered(id PointerID) bool {
	_, ok := t.corners[id]
	return ok
}

// corner returns the corner dragged by id.
func (t *pointerTracker) corner(id PointerID) (int, bool) {
	idx, ok := t.corners[id]
	return idx, ok
}

// owner returns the pointer currently dragging corner idx.
func (t *pointerTracker) owner(idx int) (PointerID, bool) {
	return t.owners[idx], t.owned[idx]
}

// claim binds id to corner idx. It fails when either side is already bound.
func (t *pointerTracker) claim(id PointerID, idx int) bool {
	if t.registered(id) || t.owned[idx] {
		return false
	}
	t.corners[id] = idx
	t.owners[idx] = id
	t.owned[idx] = true
	return true
}

// release unbinds id and returns the corner it was dragging.
func (t *pointerTracker) release(id PointerID) (int, bool) {
	idx, ok := t.corners[id]
	if !ok {
		return 0, false
	}
	delete(t.corners, id)
	t.owned[idx] = false
	t.owners[idx] = 0
	return idx, true
}

func (t *pointerTracker) reset() {
	clear(t.corners)
	t.owned = [cornerCount]bool{}
	t.owners = [cornerCount]PointerID{}
}

func (t *pointerTracker) len() int { return len(t.corners) }

// snapshot copies the live mapping.
func (t *pointerTracker) snapshot() map[PointerID]int {
	out := make(map[PointerID]int, len(t.corners))
	for id, idx := range t.corners {
		out[id] = idx
	}
	return out
}
