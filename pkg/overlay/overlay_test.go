package overlay

import (
	"testing"

	"github.com/jamsocket/aper/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(parts ...string) store.Path {
	out := make(store.Path, len(parts))
	for i, s := range parts {
		out[i] = store.PathSegment(s)
	}
	return out
}

func TestAtomDefaultAndSet(t *testing.T) {
	s := store.New()
	name := NewAtom[string](s, p("name"), StringCodec{})

	assert.Equal(t, "", name.Get())

	name.Set("hello")
	assert.Equal(t, "hello", name.Get())
}

func TestCounterCommutativity(t *testing.T) {
	s1 := store.New()
	c1 := NewCounter(s1, p("c"))
	c1.Add(1)
	c1.Subtract(1)
	c1.Add(2)

	s2 := store.New()
	c2 := NewCounter(s2, p("c"))
	c2.Add(2)
	c2.Add(1)
	c2.Subtract(1)

	assert.Equal(t, c1.Get(), c2.Get())
	assert.EqualValues(t, 2, c1.Get())
}

func TestCounterReset(t *testing.T) {
	s := store.New()
	c := NewCounter(s, p("c"))
	c.Add(5)
	c.Reset()
	assert.EqualValues(t, 0, c.Get())
}

func TestAtomMapCRUD(t *testing.T) {
	s := store.New()
	m := NewAtomMap[string, string](s, p("m"), StringCodec{}, StringCodec{})

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Set("a", "1")
	m.Set("c", "3")
	m.Set("b", "2")

	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", v)

	entries := m.Iter()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, "c", entries[2].Key)

	m.Delete("b")
	_, ok = m.Get("b")
	assert.False(t, ok)
}

type nameOverlay struct {
	Name Atom[string]
}

func attachName(h Handle, prefix store.Path) nameOverlay {
	return nameOverlay{Name: NewAtom[string](h, prefix.Append(store.PathSegment("name")), StringCodec{})}
}

func TestMapPresenceSentinel(t *testing.T) {
	s := store.New()
	m := NewMap[string, nameOverlay](s, p("users"), StringCodec{}, attachName)

	_, ok := m.Get("u1")
	assert.False(t, ok)

	entry := m.GetOrCreate("u1")
	entry.Name.Set("X")

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "X", got.Name.Get())

	m.Delete("u1")
	_, ok = m.Get("u1")
	assert.False(t, ok)
}

func TestMapGetOrCreateIsIdempotent(t *testing.T) {
	s := store.New()
	m := NewMap[string, nameOverlay](s, p("users"), StringCodec{}, attachName)

	m.GetOrCreate("u1").Name.Set("X")
	m.GetOrCreate("u1") // should not wipe the existing entry

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "X", got.Name.Get())
}

func TestMapIterOrdered(t *testing.T) {
	s := store.New()
	m := NewMap[string, nameOverlay](s, p("users"), StringCodec{}, attachName)
	m.GetOrCreate("b")
	m.GetOrCreate("a")
	m.GetOrCreate("c")

	entries := m.Iter()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, "c", entries[2].Key)
}

func TestListAppendPrependOrder(t *testing.T) {
	s := store.New()
	l := NewList[nameOverlay](s, p("items"), attachName)

	idAlpha, alpha := l.Append([]byte("client-a"))
	alpha.Name.Set("alpha")

	idBeta, beta := l.Prepend([]byte("client-b"))
	beta.Name.Set("beta")

	_, gamma := l.InsertBetween(idBeta, idAlpha, []byte("client-c"))
	gamma.Name.Set("gamma")

	entries := l.Iter()
	require.Len(t, entries, 3)
	assert.Equal(t, "beta", entries[0].Value.Name.Get())
	assert.Equal(t, "gamma", entries[1].Value.Name.Get())
	assert.Equal(t, "alpha", entries[2].Value.Name.Get())
}

func TestListDeleteAndGet(t *testing.T) {
	s := store.New()
	l := NewList[nameOverlay](s, p("items"), attachName)

	id, v := l.Append([]byte("c1"))
	v.Name.Set("only")

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, "only", got.Name.Get())

	l.Delete(id)
	_, ok = l.Get(id)
	assert.False(t, ok)
	assert.Empty(t, l.Iter())
}

func TestListConcurrentInsertSameGapTiebreaksByClientID(t *testing.T) {
	s := store.New()
	l := NewList[nameOverlay](s, p("items"), attachName)
	idLeft, _ := l.Append([]byte("base"))

	// Two different clients insert into the exact same (idLeft, nil) gap.
	idA, _ := l.InsertBetween(idLeft, nil, []byte("aaa"))
	idB, _ := l.InsertBetween(idLeft, nil, []byte("zzz"))

	assert.NotEqual(t, string(idA), string(idB))
	assert.True(t, string(idLeft) < string(idA))
	assert.True(t, string(idLeft) < string(idB))
	// "aaa" sorts before "zzz", so the client with the smaller id places first.
	assert.True(t, string(idA) < string(idB))
}

func TestFractionalKeyDensity(t *testing.T) {
	a := []byte{10}
	b := []byte{20}
	c := between(a, b)
	assert.True(t, string(a) < string(c))
	assert.True(t, string(c) < string(b))
}

func TestFractionalKeyDensityAdjacentDigits(t *testing.T) {
	a := []byte{10}
	b := []byte{11}
	c := between(a, b)
	assert.True(t, string(a) < string(c))
	assert.True(t, string(c) < string(b))
}
