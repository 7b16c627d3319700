package store

// StoreView is an immutable, cheap view of a Store at a point in time. It
// never changes regardless of mutations applied to the Store it was taken
// from: every node it can reach was cloned-on-write out of the mutating
// Store's path, never edited in place.
type StoreView struct {
	a    *arena
	root nodeID
}

// Get returns the leaf value at path, if any.
func (v *StoreView) Get(path Path) ([]byte, bool) {
	n := v.walk(path)
	if n == nil || !n.hasValue {
		return nil, false
	}
	return n.value, true
}

// Children enumerates the direct children of path in byte-lexicographic
// order of segment.
func (v *StoreView) Children(path Path) []ChildInfo {
	n := v.walk(path)
	if n == nil {
		return nil
	}
	return childInfos(v.a, n)
}

func (v *StoreView) walk(path Path) *treeNode {
	n := v.a.get(v.root)
	for _, seg := range path {
		id, ok := n.children[string(seg)]
		if !ok {
			return nil
		}
		n = v.a.get(id)
	}
	return n
}

// Release lets the arena reclaim nodes reachable only from this snapshot
// once Compact next runs. A released view must not be used again.
func (v *StoreView) Release() {
	v.a.unpin(v.root)
}

// Leaves walks the snapshot depth-first in byte-lexicographic order of
// segment and returns one Set mutation per present leaf. This is the
// "ordered sequence of Set(path, value) mutations equivalent to the current
// state" that ServerEngine.Connect uses to build a WelcomePacket, and that
// pkg/persist uses as a durable snapshot format.
func (v *StoreView) Leaves() []Mutation {
	var out []Mutation
	var walk func(path Path, n *treeNode)
	walk = func(path Path, n *treeNode) {
		if n.hasValue {
			out = append(out, Set(path.Clone(), n.value))
		}
		for _, ci := range childInfos(v.a, n) {
			childID := n.children[string(ci.Segment)]
			walk(path.Append(ci.Segment), v.a.get(childID))
		}
	}
	walk(nil, v.a.get(v.root))
	return out
}

// NewFromSnapshot returns a new mutable Store whose live root is exactly
// the snapshot's root. This is how ClientEngine recomputes speculative from
// a fresh copy of confirmed: cloning costs nothing more than pinning a root
// id, since every node underneath is already immutable.
func NewFromSnapshot(v *StoreView) *Store {
	v.a.pin(v.root)
	return &Store{
		a:    v.a,
		root: v.root,
		log:  newDirtyLog(),
	}
}
