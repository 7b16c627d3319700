package server

import (
	"errors"
	"testing"

	"github.com/jamsocket/aper/pkg/aper"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setName decodes intentBytes as a raw name and writes it at /name.
func setName(h overlay.Handle, intent []byte, _ aper.IntentMetadata) error {
	if len(intent) == 0 {
		return errors.New("empty name")
	}
	name := overlay.NewAtom[string](h, store.Path{store.PathSegment("name")}, overlay.StringCodec{})
	name.Set(string(intent))
	return nil
}

func TestConnectReturnsEmptySnapshotInitially(t *testing.T) {
	e := New(setName, nil)
	w := e.Connect()
	assert.EqualValues(t, 0, w.Version)
	assert.Empty(t, w.Snapshot)
}

func TestSubmitAdvancesVersionAndBroadcasts(t *testing.T) {
	e := New(setName, nil)
	bc, rej := e.Submit("c1", 1, []byte("alice"), 1000, 42)
	require.Nil(t, rej)
	require.NotNil(t, bc)
	assert.EqualValues(t, 1, bc.Version)
	require.Len(t, bc.Mutations, 1)
	require.NotNil(t, bc.Ack)
	assert.Equal(t, "c1", bc.Ack.ClientID)
	assert.EqualValues(t, 1, bc.Ack.ClientSeq)
	assert.EqualValues(t, 1, e.Version())
}

func TestSubmitAppErrorRollsBackAndDoesNotAdvanceVersion(t *testing.T) {
	e := New(setName, nil)
	_, rej := e.Submit("c1", 1, nil, 1000, 0)
	require.NotNil(t, rej)
	assert.Equal(t, RejectApp, rej.Reason)
	assert.EqualValues(t, 0, e.Version())

	w := e.Connect()
	assert.Empty(t, w.Snapshot)
}

func TestSubmitDeserializeRejectionNeverTouchesStore(t *testing.T) {
	e := New(setName, func(b []byte) error {
		if len(b) == 0 {
			return errors.New("bad intent")
		}
		return nil
	})
	_, rej := e.Submit("c1", 1, nil, 1000, 0)
	require.NotNil(t, rej)
	assert.Equal(t, RejectDeserialize, rej.Reason)
	assert.EqualValues(t, 0, e.Version())
}

func TestSubmitNoopStillAcksWithoutAdvancingVersion(t *testing.T) {
	noop := func(h overlay.Handle, intent []byte, _ aper.IntentMetadata) error { return nil }
	e := New(noop, nil)
	bc, rej := e.Submit("c1", 5, []byte("x"), 0, 0)
	require.Nil(t, rej)
	require.NotNil(t, bc)
	assert.EqualValues(t, 0, bc.Version)
	assert.Empty(t, bc.Mutations)
	require.NotNil(t, bc.Ack)
	assert.EqualValues(t, 5, bc.Ack.ClientSeq)
}

func TestConnectAfterSubmitsReflectsCurrentState(t *testing.T) {
	e := New(setName, nil)
	_, rej := e.Submit("c1", 1, []byte("alice"), 0, 0)
	require.Nil(t, rej)
	_, rej = e.Submit("c1", 2, []byte("bob"), 0, 0)
	require.Nil(t, rej)

	w := e.Connect()
	assert.EqualValues(t, 2, w.Version)
	require.Len(t, w.Snapshot, 1)
	assert.Equal(t, "bob", string(w.Snapshot[0].Value))
}
