package overlay

import "github.com/jamsocket/aper/pkg/store"

// Atom is a typed view of a single value stored as the leaf at its prefix.
type Atom[T any] struct {
	h      Handle
	prefix store.Path
	codec  Codec[T]
}

// NewAtom attaches an Atom[T] at prefix using codec. This is the function
// AperSync-derived code (or a hand-written attach implementation) calls for
// every struct field of Atom type.
func NewAtom[T any](h Handle, prefix store.Path, codec Codec[T]) Atom[T] {
	return Atom[T]{h: h, prefix: prefix, codec: codec}
}

// Get returns the decoded value, or the codec's Default if no leaf has been
// written at the prefix yet.
func (a Atom[T]) Get() T {
	raw, ok := a.h.Get(a.prefix)
	if !ok {
		return a.codec.Default()
	}
	v, err := a.codec.Decode(raw)
	if err != nil {
		return a.codec.Default()
	}
	return v
}

// Set writes the encoded value at the prefix.
func (a Atom[T]) Set(v T) {
	a.h.Set(a.prefix, a.codec.Encode(v))
}
