package overlay

import "github.com/jamsocket/aper/pkg/store"

// ElementID identifies a List element for its lifetime. It is, by this
// implementation's choice, exactly the element's fractional position key
// (see fractional.go). List has no "move" operation, so an element's
// position never changes after insertion, and reusing the position key as
// the id avoids a second indirection.
type ElementID = store.PathSegment

// List is an ordered sequence of overlay values. Order is determined by
// each element's fractional position key, which is also its ElementID;
// store.Store.Children already returns children in byte-lexicographic
// order, so iterating the list's children directly yields position order.
type List[V any] struct {
	h       Handle
	prefix  store.Path
	factory Factory[V]
}

// NewList attaches a List[V] at prefix.
func NewList[V any](h Handle, prefix store.Path, factory Factory[V]) List[V] {
	return List[V]{h: h, prefix: prefix, factory: factory}
}

func (l List[V]) entryPrefix(id ElementID) store.Path {
	return l.prefix.Append(id)
}

func (l List[V]) presentChildren() []store.ChildInfo {
	children := l.h.Children(l.prefix)
	out := children[:0]
	for _, c := range children {
		entry := l.prefix.Append(c.Segment)
		if _, present := l.h.Get(entry.Append(presenceSegment)); present {
			out = append(out, c)
		}
	}
	return out
}

func (l List[V]) insertAt(id ElementID) V {
	entry := l.entryPrefix(id)
	l.h.Set(entry.Append(presenceSegment), []byte{1})
	return l.factory(l.h, entry)
}

// Append inserts v after every current element and returns its id.
func (l List[V]) Append(clientID []byte) (ElementID, V) {
	children := l.presentChildren()
	var last []byte
	if n := len(children); n > 0 {
		last = children[n-1].Segment
	}
	id := ElementID(tiebreak(after(last), clientID))
	return id, l.insertAt(id)
}

// Prepend inserts v before every current element and returns its id.
func (l List[V]) Prepend(clientID []byte) (ElementID, V) {
	children := l.presentChildren()
	var first []byte
	if len(children) > 0 {
		first = children[0].Segment
	}
	id := ElementID(tiebreak(before(first), clientID))
	return id, l.insertAt(id)
}

// InsertBetween inserts v between beforeID and afterID, which must be
// adjacent existing elements (or absent, meaning list start/end), and
// returns its id. clientID is the inserting client's identity, used only
// to deterministically break ties against a concurrent insert into the
// same gap.
func (l List[V]) InsertBetween(beforeID, afterID ElementID, clientID []byte) (ElementID, V) {
	id := ElementID(tiebreak(between([]byte(beforeID), []byte(afterID)), clientID))
	return id, l.insertAt(id)
}

// Get returns the overlay for id, if present.
func (l List[V]) Get(id ElementID) (v V, ok bool) {
	entry := l.entryPrefix(id)
	if _, present := l.h.Get(entry.Append(presenceSegment)); !present {
		return v, false
	}
	return l.factory(l.h, entry), true
}

// Delete removes the element with the given id.
func (l List[V]) Delete(id ElementID) {
	l.h.Delete(l.entryPrefix(id))
}

// ListEntry is one element returned by List.Iter, in position order.
type ListEntry[V any] struct {
	ID    ElementID
	Value V
}

// Iter returns every element in position-key order.
func (l List[V]) Iter() []ListEntry[V] {
	children := l.presentChildren()
	out := make([]ListEntry[V], 0, len(children))
	for _, c := range children {
		entry := l.prefix.Append(c.Segment)
		out = append(out, ListEntry[V]{ID: ElementID(c.Segment), Value: l.factory(l.h, entry)})
	}
	return out
}
