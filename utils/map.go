package utils

// Hashable is a key that can be stored in a Map. HashCode is fast but not
// collision resistant; EqualI resolves collisions.
type Hashable interface {
	HashCode() uint64
	EqualI(Hashable) bool
}

// Map is a hash map from Hashable keys to arbitrary values.
type Map map[uint64][]mapEntry

type mapEntry struct {
	e Hashable
	v interface{}
}

func (m Map) Find(e Hashable) (interface{}, bool) {
	s, ok := m[e.HashCode()]
	if !ok {
		return nil, false
	}
	for _, x := range s {
		if x.e.EqualI(e) {
			return x.v, true
		}
	}
	return nil, false
}

func (m Map) Set(e Hashable, v interface{}) {
	h := e.HashCode()
	s, ok := m[h]
	if !ok {
		s = make([]mapEntry, 0, 1)
	} else {
		for i, x := range s {
			if x.e.EqualI(e) {
				s[i].v = v
				return
			}
		}
	}
	m[h] = append(s, mapEntry{e: e, v: v})
}

// Add inserts the entry if the key is absent and returns the stored value.
func (m Map) Add(e Hashable, v interface{}) interface{} {
	h := e.HashCode()
	s, ok := m[h]
	if !ok {
		s = make([]mapEntry, 0, 1)
	} else {
		for _, x := range s {
			if x.e.EqualI(e) {
				return x.v
			}
		}
	}
	m[h] = append(s, mapEntry{e: e, v: v})
	return v
}
