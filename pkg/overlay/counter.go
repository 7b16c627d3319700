package overlay

import "github.com/jamsocket/aper/pkg/store"

// Counter is an integer-valued Atom with transition-oriented operations.
// Add and Subtract commute with each other; Reset overrides whatever came
// before it. A user `apply` composes these into larger intents - Counter
// itself never touches the network.
type Counter struct {
	atom Atom[int64]
}

// NewCounter attaches a Counter at prefix.
func NewCounter(h Handle, prefix store.Path) Counter {
	return Counter{atom: NewAtom[int64](h, prefix, Int64Codec{})}
}

// Get returns the current value, 0 if never set.
func (c Counter) Get() int64 {
	return c.atom.Get()
}

// Add increments the counter by delta (delta may be negative).
func (c Counter) Add(delta int64) {
	c.atom.Set(c.atom.Get() + delta)
}

// Subtract decrements the counter by delta.
func (c Counter) Subtract(delta int64) {
	c.atom.Set(c.atom.Get() - delta)
}

// Reset sets the counter back to zero, discarding any prior accumulation.
func (c Counter) Reset() {
	c.atom.Set(0)
}
