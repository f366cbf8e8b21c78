package rhmap

import "bytes"

// Key pairs a key's raw bytes with its precomputed hash. Equality is by
// Name only — Hash is carried alongside purely to avoid re-hashing on every
// probe step.
type Key struct {
	Name []byte
	Hash int64
}

const (
	initialCapacity  = 64
	loadFactorNum    = 9
	loadFactorDenom  = 10
	emptyDistance    = -1 // unused: grow rehashes into a fresh slot array, which needs no sentinel
)

type entry[V any] struct {
	key      Key
	value    V
	distance int32
	used     bool
}

// Map is a fixed-power-of-two-sized Robin Hood open-addressing hash map.
// The zero value is not usable; construct one with New.
type Map[V any] struct {
	slots    []entry[V]
	size     int
	resizeAt int
}

// New returns an empty Map with the spec's initial capacity (64 slots) and
// load factor (0.9).
func New[V any]() *Map[V] {
	return &Map[V]{
		slots:    make([]entry[V], initialCapacity),
		resizeAt: initialCapacity * loadFactorNum / loadFactorDenom,
	}
}

// Len returns the number of present entries.
func (m *Map[V]) Len() int {
	return m.size
}

func desiredIndex(hash int64, capacity int) int {
	return int(uint64(hash) & uint64(capacity-1))
}

// Get looks up key, probing forward from its desired slot. The Robin Hood
// invariant lets it stop early: once the occupant's own probe distance is
// shorter than how far we've already walked, key cannot be present (it
// would have displaced that occupant on insertion).
func (m *Map[V]) Get(key Key) (V, bool) {
	capacity := len(m.slots)
	idx := desiredIndex(key.Hash, capacity)
	dist := int32(0)

	for {
		s := &m.slots[idx]
		if !s.used {
			var zero V
			return zero, false
		}
		if s.distance < dist {
			var zero V
			return zero, false
		}
		if bytes.Equal(s.key.Name, key.Name) {
			return s.value, true
		}
		idx = (idx + 1) & (capacity - 1)
		dist++
	}
}

// Set inserts or replaces key's value, resizing first if the load factor
// would be exceeded. It returns the previous value and whether one
// existed.
func (m *Map[V]) Set(key Key, value V) (V, bool) {
	if m.size >= m.resizeAt {
		m.grow()
	}
	return m.insert(key, value)
}

// insert runs the Robin Hood probe-and-displace loop with no resize check,
// used both by Set (after any needed resize) and by grow (re-inserting
// every surviving entry into the doubled table).
func (m *Map[V]) insert(key Key, value V) (V, bool) {
	capacity := len(m.slots)
	idx := desiredIndex(key.Hash, capacity)
	dist := int32(0)

	for {
		s := &m.slots[idx]
		if !s.used {
			s.used = true
			s.key = key
			s.value = value
			s.distance = dist
			m.size++
			var zero V
			return zero, false
		}
		if bytes.Equal(s.key.Name, key.Name) {
			old := s.value
			s.value = value
			return old, true
		}
		if s.distance < dist {
			// Poorer entry: swap it out and keep carrying the richer one.
			s.key, key = key, s.key
			s.value, value = value, s.value
			s.distance, dist = dist, s.distance
		}
		idx = (idx + 1) & (capacity - 1)
		dist++
	}
}

// Remove deletes key if present, backward-shifting the entries that follow
// it to close the probe-distance gap it leaves behind.
func (m *Map[V]) Remove(key Key) (V, bool) {
	capacity := len(m.slots)
	idx := desiredIndex(key.Hash, capacity)
	dist := int32(0)

	for {
		s := &m.slots[idx]
		if !s.used {
			var zero V
			return zero, false
		}
		if s.distance < dist {
			var zero V
			return zero, false
		}
		if bytes.Equal(s.key.Name, key.Name) {
			val := s.value
			m.backwardShift(idx)
			m.size--
			return val, true
		}
		idx = (idx + 1) & (capacity - 1)
		dist++
	}
}

// backwardShift walks forward from the just-vacated slot, pulling each
// subsequent entry back one slot (and decrementing its distance) for as
// long as that entry's own distance is greater than zero. It stops at the
// first empty slot or the first entry that is already at its desired slot.
func (m *Map[V]) backwardShift(removed int) {
	capacity := len(m.slots)
	i := removed

	for {
		next := (i + 1) & (capacity - 1)
		ns := &m.slots[next]
		if !ns.used || ns.distance == 0 {
			m.slots[i] = entry[V]{}
			return
		}
		m.slots[i] = entry[V]{used: true, key: ns.key, value: ns.value, distance: ns.distance - 1}
		i = next
	}
}

// grow doubles capacity and re-inserts every present entry from distance 0
// into the fresh slot array. size is unchanged by a grow.
func (m *Map[V]) grow() {
	old := m.slots
	newCapacity := len(old) * 2

	m.slots = make([]entry[V], newCapacity)
	m.resizeAt = newCapacity * loadFactorNum / loadFactorDenom
	m.size = 0

	for i := range old {
		if old[i].used {
			m.insert(old[i].key, old[i].value)
		}
	}
}

// Keys returns the names of every present entry, in slot order (an
// unspecified order from the client's perspective).
func (m *Map[V]) Keys() [][]byte {
	out := make([][]byte, 0, m.size)
	for i := range m.slots {
		if m.slots[i].used {
			out = append(out, m.slots[i].key.Name)
		}
	}
	return out
}

// Range visits every present entry. If fn returns changed == true, the
// entry's value is replaced with newValue in place. This is the hook
// internal/bumpalloc's Allocator.Defragment uses to rewrite Small values
// that live in a block being compacted, without internal/rhmap needing to
// know anything about internal/bumpalloc.
func (m *Map[V]) Range(fn func(name []byte, value V) (newValue V, changed bool)) {
	for i := range m.slots {
		s := &m.slots[i]
		if !s.used {
			continue
		}
		nv, changed := fn(s.key.Name, s.value)
		if changed {
			s.value = nv
		}
	}
}
