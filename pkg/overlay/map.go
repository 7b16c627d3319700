package overlay

import "github.com/jamsocket/aper/pkg/store"

// presenceSegment is the reserved marker placed under an entry's prefix so
// presence is unambiguous even when the sub-overlay is structurally empty
// (e.g. a freshly get_or_create'd struct with every field still at its
// zero value, which would otherwise write no leaves at all).
var presenceSegment = store.PathSegment{0x00}

// Factory attaches an overlay of type V at h/prefix. It is what
// AperSync-derived code (or a hand-written equivalent) provides for a
// struct-of-overlays value type.
type Factory[V any] func(h Handle, prefix store.Path) V

// Map is a mapping from a typed key to a structured overlay value. Unlike
// AtomMap, a Map entry's "value" is itself a sub-tree reachable through
// another overlay, not a single opaque blob.
type Map[K any, V any] struct {
	h       Handle
	prefix  store.Path
	keys    KeyCodec[K]
	factory Factory[V]
}

// NewMap attaches a Map[K, V] at prefix.
func NewMap[K any, V any](h Handle, prefix store.Path, keys KeyCodec[K], factory Factory[V]) Map[K, V] {
	return Map[K, V]{h: h, prefix: prefix, keys: keys, factory: factory}
}

func (m Map[K, V]) entryPrefix(k K) store.Path {
	return m.prefix.Append(store.PathSegment(m.keys.EncodeKey(k)))
}

// Get returns the overlay anchored at k's entry prefix iff the presence
// sentinel exists there; otherwise ok is false and V is the zero value.
func (m Map[K, V]) Get(k K) (v V, ok bool) {
	entry := m.entryPrefix(k)
	if _, present := m.h.Get(entry.Append(presenceSegment)); !present {
		return v, false
	}
	return m.factory(m.h, entry), true
}

// GetOrCreate writes the presence sentinel if absent (idempotent) and
// returns the overlay anchored at k's entry prefix.
func (m Map[K, V]) GetOrCreate(k K) V {
	entry := m.entryPrefix(k)
	if _, present := m.h.Get(entry.Append(presenceSegment)); !present {
		m.h.Set(entry.Append(presenceSegment), []byte{1})
	}
	return m.factory(m.h, entry)
}

// Delete removes the entire sub-overlay rooted at k's entry prefix,
// including its presence sentinel.
func (m Map[K, V]) Delete(k K) {
	m.h.Delete(m.entryPrefix(k))
}

// MapEntry is one key/value pair returned by Map.Iter.
type MapEntry[K any, V any] struct {
	Key   K
	Value V
}

// Iter enumerates present children in ordered key sequence.
func (m Map[K, V]) Iter() []MapEntry[K, V] {
	children := m.h.Children(m.prefix)
	out := make([]MapEntry[K, V], 0, len(children))
	for _, c := range children {
		entry := m.prefix.Append(c.Segment)
		if _, present := m.h.Get(entry.Append(presenceSegment)); !present {
			continue
		}
		k, err := m.keys.DecodeKey(c.Segment)
		if err != nil {
			continue
		}
		out = append(out, MapEntry[K, V]{Key: k, Value: m.factory(m.h, entry)})
	}
	return out
}
