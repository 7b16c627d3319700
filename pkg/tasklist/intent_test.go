package tasklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsocket/aper/pkg/aper"
	"github.com/jamsocket/aper/pkg/store"
)

func TestIntentEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		intent Intent
	}{
		{"set title", Intent{Kind: KindSetTitle, Name: "groceries"}},
		{"create at end", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}},
		{"create at top", Intent{Kind: KindCreate, TaskID: "t2", Name: "eggs", Place: PlaceTop}},
		{"create between", Intent{Kind: KindCreate, TaskID: "t3", Name: "bread", Place: PlaceBetween, BeforeID: []byte{0x40}, AfterID: []byte{0x80}}},
		{"rename", Intent{Kind: KindRename, TaskID: "t1", Name: "oat milk"}},
		{"set done", Intent{Kind: KindSetDone, TaskID: "t1", Done: true}},
		{"remove completed", Intent{Kind: KindRemoveCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeIntent(tt.intent.Encode())
			require.NoError(t, err)
			assert.Equal(t, tt.intent, decoded)
		})
	}
}

func TestDecodeRejectsMalformedIntents(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"unknown kind", []byte{0xEE}},
		{"truncated create", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}.Encode()[:3]},
		{"trailing bytes", append(Intent{Kind: KindRemoveCompleted}.Encode(), 0x01)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Decode(tt.b))
		})
	}
}

func applyIntent(t *testing.T, s *store.Store, clientID string, i Intent) error {
	t.Helper()
	return Apply(s, i.Encode(), aper.IntentMetadata{ClientID: clientID})
}

func TestApplyCreateRenameDone(t *testing.T) {
	s := store.New()
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}))
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindRename, TaskID: "t1", Name: "oat milk"}))
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindSetDone, TaskID: "t1", Done: true}))

	l := Attach(s)
	view := l.View()
	require.Len(t, view, 1)
	assert.Equal(t, TaskView{ID: "t1", Name: "oat milk", Done: true}, view[0])
	assert.EqualValues(t, 1, l.CompletedTotal.Get())
}

func TestApplyRenameMissingTaskFails(t *testing.T) {
	s := store.New()
	err := applyIntent(t, s, "a", Intent{Kind: KindRename, TaskID: "nope", Name: "x"})
	assert.Error(t, err)
}

func TestApplyCreateDuplicateFails(t *testing.T) {
	s := store.New()
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}))
	err := applyIntent(t, s, "b", Intent{Kind: KindCreate, TaskID: "t1", Name: "again"})
	assert.Error(t, err)
}

func TestApplySetDoneSameValueIsNoop(t *testing.T) {
	s := store.New()
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}))
	s.TakeMutations()

	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindSetDone, TaskID: "t1", Done: false}))
	assert.Empty(t, s.TakeMutations())
}

func TestApplyRemoveCompleted(t *testing.T) {
	s := store.New()
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}))
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindCreate, TaskID: "t2", Name: "eggs"}))
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindSetDone, TaskID: "t1", Done: true}))
	require.NoError(t, applyIntent(t, s, "a", Intent{Kind: KindRemoveCompleted}))

	l := Attach(s)
	view := l.View()
	require.Len(t, view, 1)
	assert.Equal(t, "t2", view[0].ID)
	// The lifetime completion count survives removal.
	assert.EqualValues(t, 1, l.CompletedTotal.Get())
}

func TestApplyIsDeterministic(t *testing.T) {
	run := func() *store.Store {
		s := store.New()
		require.NoError(t, applyIntent(t, s, "client-a", Intent{Kind: KindCreate, TaskID: "t1", Name: "milk"}))
		require.NoError(t, applyIntent(t, s, "client-b", Intent{Kind: KindCreate, TaskID: "t2", Name: "eggs", Place: PlaceTop}))
		require.NoError(t, applyIntent(t, s, "client-a", Intent{Kind: KindSetDone, TaskID: "t2", Done: true}))
		return s
	}
	a, b := run(), run()
	av, bv := a.Snapshot(), b.Snapshot()
	defer av.Release()
	defer bv.Release()
	assert.Equal(t, av.Leaves(), bv.Leaves())
}
