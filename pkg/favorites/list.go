package favorites

// entityList keeps entities in arrival order, keyed by id. Putting an id
// that is already present replaces the entity where it stands.
type entityList struct {
	keys  []int64
	byKey map[int64]Entity
	anon  int64
}

func newEntityList() entityList {
	return entityList{byKey: make(map[int64]Entity)}
}

func (l *entityList) put(entities ...Entity) {
	for _, e := range entities {
		key := e.ID
		if key <= 0 {
			// Entities without an id never collapse into each other.
			l.anon--
			key = l.anon
		}
		if _, ok := l.byKey[key]; !ok {
			l.keys = append(l.keys, key)
		}
		l.byKey[key] = e
	}
}

// remove drops id and reports whether it was present.
func (l *entityList) remove(id int64) bool {
	if id <= 0 {
		return false
	}
	if _, ok := l.byKey[id]; !ok {
		return false
	}
	delete(l.byKey, id)
	for i, k := range l.keys {
		if k == id {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
	return true
}

func (l *entityList) get(id int64) (Entity, bool) {
	if id <= 0 {
		return Entity{}, false
	}
	e, ok := l.byKey[id]
	return e, ok
}

func (l *entityList) len() int {
	return len(l.keys)
}

func (l *entityList) snapshot() []Entity {
	out := make([]Entity, len(l.keys))
	for i, k := range l.keys {
		out[i] = l.byKey[k]
	}
	return out
}
