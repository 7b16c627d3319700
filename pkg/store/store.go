package store

import (
	"sort"
	"sync"
)

// ChildInfo describes one direct child of a path, as returned by Children.
type ChildInfo struct {
	Segment     PathSegment
	HasValue    bool
	HasChildren bool
}

// Store is a shareable hierarchical key/value tree. The zero value is not
// usable; construct one with New.
//
// Store operations never fail on well-formed input: reading a missing path
// returns ok=false, and deleting a missing path is a no-op. This matters for
// idempotent application of authoritative Deletes that may arrive after a
// client has already sped ahead and deleted the same path speculatively.
type Store struct {
	mu   sync.Mutex
	a    *arena
	root nodeID
	log  *dirtyLog
}

// New returns an empty Store at version 0 (version is tracked by
// ServerEngine, not by Store itself).
func New() *Store {
	a := newArena()
	return &Store{
		a:    a,
		root: 1, // newArena() always inserts the empty root as id 1
		log:  newDirtyLog(),
	}
}

// Get returns the leaf value at path, if any.
func (s *Store) Get(path Path) ([]byte, bool) {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	n := s.walk(root, path)
	if n == nil || !n.hasValue {
		return nil, false
	}
	return n.value, true
}

// Children enumerates the direct children of path in byte-lexicographic
// order of segment.
func (s *Store) Children(path Path) []ChildInfo {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	n := s.walk(root, path)
	if n == nil {
		return nil
	}
	return childInfos(s.a, n)
}

func childInfos(a *arena, n *treeNode) []ChildInfo {
	out := make([]ChildInfo, 0, len(n.children))
	for key, id := range n.children {
		child := a.get(id)
		out = append(out, ChildInfo{
			Segment:     PathSegment(key),
			HasValue:    child.hasValue,
			HasChildren: len(child.children) > 0,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Segment) < string(out[j].Segment)
	})
	return out
}

// walk returns the node at path starting from root, or nil if any segment
// along the way is missing.
func (s *Store) walk(root nodeID, path Path) *treeNode {
	n := s.a.get(root)
	for _, seg := range path {
		id, ok := n.children[string(seg)]
		if !ok {
			return nil
		}
		n = s.a.get(id)
	}
	return n
}

// Set installs a leaf value at path, creating missing ancestors.
func (s *Store) Set(path Path, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceRoot(s.setAt(s.root, path, value))
	s.log.recordSet(path, value)
}

// replaceRoot swaps the live root, keeping it pinned in the arena so that
// Compact never treats the live tree as garbage. The old root stays alive
// only if a snapshot still pins it.
func (s *Store) replaceRoot(newRoot nodeID) {
	s.a.pin(newRoot)
	s.a.unpin(s.root)
	s.root = newRoot
}

// setAt clones every node from root down to path, returning the new root id.
func (s *Store) setAt(root nodeID, path Path, value []byte) nodeID {
	old := s.a.get(root)
	cur := old.clone()

	if len(path) == 0 {
		cur.value = value
		cur.hasValue = true
		return s.a.insert(cur)
	}

	seg := string(path[0])
	childID := cur.children[seg]
	newChildID := s.setAt(childID, path[1:], value)
	if cur.children == nil {
		cur.children = make(map[string]nodeID, 1)
	}
	cur.children[seg] = newChildID
	return s.a.insert(cur)
}

// Delete removes the subtree rooted at path. Deleting a path that does not
// exist is a no-op.
func (s *Store) Delete(path Path) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.walk(s.root, path) == nil {
		return
	}

	newRoot, changed := s.deleteAt(s.root, path)
	if !changed {
		return
	}
	s.replaceRoot(newRoot)
	s.log.recordDelete(path)
}

// deleteAt clones the path down to the parent of the target and unlinks the
// child. It returns changed=false if the path was already absent.
func (s *Store) deleteAt(root nodeID, path Path) (nodeID, bool) {
	if len(path) == 0 {
		return s.a.insert(emptyNode()), true
	}

	old := s.a.get(root)
	seg := string(path[0])
	childID, ok := old.children[seg]
	if !ok {
		return root, false
	}

	cur := old.clone()
	if len(path) == 1 {
		delete(cur.children, seg)
		return s.a.insert(cur), true
	}

	newChildID, changed := s.deleteAt(childID, path[1:])
	if !changed {
		return root, false
	}
	cur.children[seg] = newChildID
	return s.a.insert(cur), true
}

// Apply applies a sequence of Mutations in order, as a client's confirmed
// store does with an authoritative ServerBroadcast, or as a fresh Store
// does when replaying a WelcomePacket.
func (s *Store) Apply(muts []Mutation) {
	for _, m := range muts {
		switch m.Kind {
		case KindSet:
			s.Set(m.Path, m.Value)
		case KindDelete:
			s.Delete(m.Path)
		}
	}
}

// TakeMutations returns and clears the mutations accumulated since the last
// call, in application order with redundant entries coalesced.
func (s *Store) TakeMutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.drain()
}

// DirtyLen reports the number of pending (uncoalesced into nothing) dirty
// entries, for metrics.
func (s *Store) DirtyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.len()
}

// Snapshot produces a read-only view of the Store at the current instant.
// Snapshots are O(1): they pin the current root id and never copy the tree.
func (s *Store) Snapshot() *StoreView {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	s.a.pin(root)
	return &StoreView{a: s.a, root: root}
}

// Restore resets the live root to match a previously taken snapshot, used
// by ServerEngine to roll back a rejected submit. It does not clear
// mutations already drained by TakeMutations; callers that drain before
// restoring are responsible for discarding that drained batch themselves.
func (s *Store) Restore(v *StoreView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceRoot(v.root)
}

// Compact drops arena nodes unreachable from the live root or any
// outstanding snapshot. It never changes observable Store or StoreView
// contents; it only reclaims memory.
func (s *Store) Compact() {
	s.a.compact()
}

// ArenaSize reports the number of live arena nodes, for metrics/tests.
func (s *Store) ArenaSize() int {
	return s.a.size()
}
