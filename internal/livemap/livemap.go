// Package livemap tracks live objects by a small integer ID.
// Uses fibonacci hashing for better distribution of sequential IDs.
package livemap

// Map is a hash map from uint32 IDs to values of type V.
// Uses open addressing with linear probing and fibonacci hashing.
// The zero value is an empty map ready for use.
type Map[V any] struct {
	buckets []bucket[V]
	count   int
	mask    uint32
}

type bucket[V any] struct {
	key   uint32
	value V
	used  bool // Needed because key=0 might be valid
}

// Fibonacci hash constant: 2^32 / golden ratio
const fibHash32 = 2654435769

// hash computes a fast hash using fibonacci hashing
func (m *Map[V]) hash(key uint32) uint32 {
	return key * fibHash32
}

// Get returns the value for the given key and whether it was present.
func (m *Map[V]) Get(key uint32) (V, bool) {
	var zero V
	if len(m.buckets) == 0 {
		return zero, false
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			return zero, false
		}
		if b.key == key {
			return b.value, true
		}
		idx = (idx + 1) & m.mask
	}
}

// Set stores a key-value pair.
func (m *Map[V]) Set(key uint32, value V) {
	if len(m.buckets) == 0 {
		m.buckets = make([]bucket[V], 16)
		m.mask = 15
	} else if m.count >= len(m.buckets)*3/4 {
		m.grow()
	}

	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			b.key = key
			b.value = value
			b.used = true
			m.count++
			return
		}
		if b.key == key {
			b.value = value
			return
		}
		idx = (idx + 1) & m.mask
	}
}

// Delete removes key and reports whether it was present.
// Later entries of the probe run are shifted back so lookups never
// stop early at the hole.
func (m *Map[V]) Delete(key uint32) bool {
	if len(m.buckets) == 0 {
		return false
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			return false
		}
		if b.key == key {
			break
		}
		idx = (idx + 1) & m.mask
	}

	hole := idx
	next := (hole + 1) & m.mask
	for m.buckets[next].used {
		home := m.hash(m.buckets[next].key) & m.mask
		// Move next into the hole unless its home lies cyclically in (hole, next].
		if (next-home)&m.mask >= (next-hole)&m.mask {
			m.buckets[hole] = m.buckets[next]
			hole = next
		}
		next = (next + 1) & m.mask
	}
	m.buckets[hole] = bucket[V]{}
	m.count--
	return true
}

// grow doubles the hash table size
func (m *Map[V]) grow() {
	oldBuckets := m.buckets
	newSize := len(oldBuckets) * 2
	m.buckets = make([]bucket[V], newSize)
	m.mask = uint32(newSize - 1)
	m.count = 0

	for i := range oldBuckets {
		if oldBuckets[i].used {
			m.Set(oldBuckets[i].key, oldBuckets[i].value)
		}
	}
}

// ForEach iterates over all key-value pairs.
func (m *Map[V]) ForEach(fn func(uint32, V)) {
	for i := range m.buckets {
		if m.buckets[i].used {
			fn(m.buckets[i].key, m.buckets[i].value)
		}
	}
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	return m.count
}
