package store

import (
	"bytes"
	"fmt"
)

// PathSegment is a single non-empty opaque byte string. Segments compare
// bytewise; there is no collation, case-folding, or locale awareness.
type PathSegment []byte

// Path is an ordered sequence of segments from the Store root to a node.
// A nil or empty Path addresses the root itself.
type Path []PathSegment

// Equal reports whether two paths have identical segments in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a prefix of p or equal to it (i.e. p
// is prefix itself or a descendant of prefix).
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if !bytes.Equal(p[i], prefix[i]) {
			return false
		}
	}
	return true
}

// Append returns a new Path with the given segment appended. The receiver
// is never mutated.
func (p Path) Append(seg PathSegment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// Join returns a new Path with suffix appended after p.
func (p Path) Join(suffix Path) Path {
	out := make(Path, 0, len(p)+len(suffix))
	out = append(out, p...)
	out = append(out, suffix...)
	return out
}

// Clone returns a deep copy so callers may hold onto a Path past the
// lifetime of whatever buffer it was built from.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	for i, seg := range p {
		s := make(PathSegment, len(seg))
		copy(s, seg)
		out[i] = s
	}
	return out
}

// key renders the path into a byte string suitable for use as a map key,
// distinguishing e.g. [{"ab"},{"c"}] from [{"a"},{"bc"}] via length prefixes.
// Each segment is written as its decimal length, a ':' and its bytes; this
// in-memory key is not the uvarint encoding pkg/wire puts on the wire.
func (p Path) key() string {
	var buf bytes.Buffer
	for _, seg := range p {
		fmt.Fprintf(&buf, "%d:", len(seg))
		buf.Write(seg)
	}
	return buf.String()
}

func (p Path) String() string {
	var buf bytes.Buffer
	buf.WriteByte('/')
	for i, seg := range p {
		if i > 0 {
			buf.WriteByte('/')
		}
		buf.Write(seg)
	}
	return buf.String()
}
