package overlay

import (
	"github.com/jamsocket/aper/pkg/store"
)

// AtomMapEntry is one key/value pair returned by AtomMap.Iter.
type AtomMapEntry[K any, V any] struct {
	Key   K
	Value V
}

// AtomMap is a mapping from a typed key to an opaque, wholesale-replaced
// value. Unlike Map, the value is not itself an overlay - it is set and
// read as a single unit.
type AtomMap[K any, V any] struct {
	h      Handle
	prefix store.Path
	keys   KeyCodec[K]
	values Codec[V]
}

// NewAtomMap attaches an AtomMap[K, V] at prefix.
func NewAtomMap[K any, V any](h Handle, prefix store.Path, keys KeyCodec[K], values Codec[V]) AtomMap[K, V] {
	return AtomMap[K, V]{h: h, prefix: prefix, keys: keys, values: values}
}

func (m AtomMap[K, V]) entryPath(k K) store.Path {
	return m.prefix.Append(store.PathSegment(m.keys.EncodeKey(k)))
}

// Get returns the decoded value for k, if present.
func (m AtomMap[K, V]) Get(k K) (V, bool) {
	raw, ok := m.h.Get(m.entryPath(k))
	if !ok {
		var zero V
		return zero, false
	}
	v, err := m.values.Decode(raw)
	if err != nil {
		var zero V
		return zero, false
	}
	return v, true
}

// Set replaces the value stored for k.
func (m AtomMap[K, V]) Set(k K, v V) {
	m.h.Set(m.entryPath(k), m.values.Encode(v))
}

// Delete removes k from the map. Deleting an absent key is a no-op.
func (m AtomMap[K, V]) Delete(k K) {
	m.h.Delete(m.entryPath(k))
}

// Iter returns every present entry ordered by the byte order of its
// encoded key. store.Store.Children already returns children in that
// order, so no re-sorting is needed here.
func (m AtomMap[K, V]) Iter() []AtomMapEntry[K, V] {
	children := m.h.Children(m.prefix)
	out := make([]AtomMapEntry[K, V], 0, len(children))
	for _, c := range children {
		if !c.HasValue {
			continue
		}
		k, err := m.keys.DecodeKey(c.Segment)
		if err != nil {
			continue
		}
		v, ok := m.Get(k)
		if !ok {
			continue
		}
		out = append(out, AtomMapEntry[K, V]{Key: k, Value: v})
	}
	return out
}
