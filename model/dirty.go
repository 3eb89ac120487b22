package model

// dirtySeen tracks which Dicts and Arrays a walk has already visited, so a
// cycle (a Dict/Array reachable from itself through non-Ref children) can't
// recurse forever.
type dirtySeen struct {
	dicts  map[*Dict]bool
	arrays map[*Array]bool
}

func newDirtySeen() dirtySeen {
	return dirtySeen{dicts: make(map[*Dict]bool), arrays: make(map[*Array]bool)}
}

// HasDirtyDescendant reports whether v's own dirty bit is set, or any
// reachable non-Ref child's dirty bit is set (spec.md §4.8, Invariant I3:
// Dict, Array, and Stream each carry a dirty bit). The walk stops at Ref
// boundaries: a referenced indirect object is a separate change-collector
// unit, not a descendant of v.
func HasDirtyDescendant(v Value) bool {
	return hasDirtyDescendant(v, newDirtySeen())
}

func hasDirtyDescendant(v Value, seen dirtySeen) bool {
	switch v.Kind() {
	case KindDict:
		return dictHasDirtyDescendant(v.AsDict(), seen)
	case KindStream:
		return dictHasDirtyDescendant(v.AsDict(), seen)
	case KindArray:
		return arrayHasDirtyDescendant(v.AsArrayPtr(), seen)
	default:
		return false
	}
}

func arrayHasDirtyDescendant(a *Array, seen dirtySeen) bool {
	if a == nil || seen.arrays[a] {
		return false
	}
	seen.arrays[a] = true
	if a.Dirty() {
		return true
	}
	for _, e := range a.Items() {
		if hasDirtyDescendant(e, seen) {
			return true
		}
	}
	return false
}

func dictHasDirtyDescendant(d *Dict, seen dirtySeen) bool {
	if d == nil || seen.dicts[d] {
		return false
	}
	seen.dicts[d] = true
	if d.Dirty() {
		return true
	}
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		if v.Kind() == KindRef {
			continue
		}
		if hasDirtyDescendant(v, seen) {
			return true
		}
	}
	return false
}

// ClearDirtyDescendant recursively clears the dirty bit of v and every
// reachable non-Ref Dict/Array/Stream descendant, used after a successful
// save (I7).
func ClearDirtyDescendant(v Value) {
	clearDirtyDescendant(v, newDirtySeen())
}

func clearDirtyDescendant(v Value, seen dirtySeen) {
	switch v.Kind() {
	case KindDict, KindStream:
		d := v.AsDict()
		if d == nil || seen.dicts[d] {
			return
		}
		seen.dicts[d] = true
		d.ClearDirty()
		for _, k := range d.Keys() {
			cv, _ := d.Get(k)
			if cv.Kind() == KindRef {
				continue
			}
			clearDirtyDescendant(cv, seen)
		}
	case KindArray:
		a := v.AsArrayPtr()
		if a == nil || seen.arrays[a] {
			return
		}
		seen.arrays[a] = true
		a.ClearDirty()
		for _, e := range a.Items() {
			clearDirtyDescendant(e, seen)
		}
	}
}
