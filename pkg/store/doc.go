/*
Package store implements Aper's hierarchical key/value tree: the single data
structure shared by the server's authoritative state and every client's
confirmed and speculative copies.

# Architecture

The tree is backed by an arena of immutable nodes addressed by integer id,
not by owned recursive pointers. A mutation clones only the nodes on the
path from the root to the changed leaf; every other node is shared by
reference with whatever snapshot last observed it. This is what makes
Snapshot O(1) and mutation O(depth) instead of O(size of tree):

	┌────────────────────── ARENA ──────────────────────────────┐
	│                                                              │
	│   root(v1) ──► a ──► b ──► leaf("x")                        │
	│                 │                                            │
	│   root(v2) ─────┘    └──► b'──► leaf("y")   (clone of b)     │
	│                                                              │
	│   snapshot(v1) still resolves through the old `a`, which     │
	│   still points at the old `b`, which still holds "x".        │
	└──────────────────────────────────────────────────────────────┘

A Store has exactly one mutable root (the "live" tree) and any number of
outstanding Snapshots, each pinning a historical root. Mutating the live
tree never touches a node reachable from a still-pinned snapshot root;
it only ever allocates new nodes for the path it changes.

# Dirty tracking

The Store keeps an ordered log of Mutations since the last TakeMutations
call, coalescing redundant entries as they are recorded (see mutation.go).
This log is what ServerEngine broadcasts; ClientEngine's confirmed store
drains and discards it after applying each broadcast.

# Concurrency

Reads of a Snapshot need no locking at all: every node it can reach is
immutable. Reads/writes against the mutable root go through Store's own
mutex; this is meant to be driven by a single
writer (ServerEngine or ClientEngine), not called concurrently from
multiple goroutines.
*/
package store
