package wire

import (
	"bytes"
	"testing"

	"github.com/jamsocket/aper/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seg(s string) store.PathSegment { return store.PathSegment(s) }

func TestPathRoundTrip(t *testing.T) {
	p := store.Path{seg("users"), seg("u1"), seg("name")}
	var buf bytes.Buffer
	require.NoError(t, EncodePath(&buf, p))

	got, err := DecodePath(&buf)
	require.NoError(t, err)
	assert.True(t, got.Equal(p))
}

func TestEmptyPathRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePath(&buf, nil))
	got, err := DecodePath(&buf)
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestMutationRoundTrip(t *testing.T) {
	muts := []store.Mutation{
		store.Set(store.Path{seg("a")}, []byte("1")),
		store.Delete(store.Path{seg("b"), seg("c")}),
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeMutations(&buf, muts))

	got, err := DecodeMutations(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, store.KindSet, got[0].Kind)
	assert.True(t, got[0].Path.Equal(muts[0].Path))
	assert.Equal(t, []byte("1"), got[0].Value)
	assert.Equal(t, store.KindDelete, got[1].Kind)
	assert.True(t, got[1].Path.Equal(muts[1].Path))
}

func TestHelloRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeHello(&buf, Hello{ClientID: "c1"}))

	typ, err := ReadMessageType(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeHello, typ)

	got, err := DecodeHello(&buf)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ClientID)
}

func TestWelcomeRoundTrip(t *testing.T) {
	msg := Welcome{
		ClientID: "c1",
		Version:  7,
		Snapshot: []store.Mutation{store.Set(store.Path{seg("x")}, []byte("y"))},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeWelcome(&buf, msg))

	typ, err := ReadMessageType(&buf)
	require.NoError(t, err)
	require.Equal(t, TypeWelcome, typ)

	got, err := DecodeWelcome(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.ClientID, got.ClientID)
	assert.Equal(t, msg.Version, got.Version)
	require.Len(t, got.Snapshot, 1)
	assert.True(t, got.Snapshot[0].Path.Equal(msg.Snapshot[0].Path))
}

func TestSubmitRoundTrip(t *testing.T) {
	msg := Submit{ClientSeq: 42, IntentBytes: []byte("do-thing")}
	var buf bytes.Buffer
	require.NoError(t, EncodeSubmit(&buf, msg))

	typ, err := ReadMessageType(&buf)
	require.NoError(t, err)
	require.Equal(t, TypeSubmit, typ)

	got, err := DecodeSubmit(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.ClientSeq, got.ClientSeq)
	assert.Equal(t, msg.IntentBytes, got.IntentBytes)
}

func TestBroadcastRoundTripWithAck(t *testing.T) {
	msg := Broadcast{
		Version:   3,
		Mutations: []store.Mutation{store.Delete(store.Path{seg("z")})},
		HasAck:    true,
		Ack:       Ack{ClientID: "c1", ClientSeq: 9},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeBroadcast(&buf, msg))

	typ, err := ReadMessageType(&buf)
	require.NoError(t, err)
	require.Equal(t, TypeBroadcast, typ)

	got, err := DecodeBroadcast(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Version, got.Version)
	require.True(t, got.HasAck)
	assert.Equal(t, msg.Ack, got.Ack)
}

func TestBroadcastRoundTripWithoutAck(t *testing.T) {
	msg := Broadcast{Version: 1, Mutations: nil, HasAck: false}
	var buf bytes.Buffer
	require.NoError(t, EncodeBroadcast(&buf, msg))

	_, err := ReadMessageType(&buf)
	require.NoError(t, err)

	got, err := DecodeBroadcast(&buf)
	require.NoError(t, err)
	assert.False(t, got.HasAck)
}

func TestRejectRoundTripDeserialize(t *testing.T) {
	msg := Reject{ClientSeq: 5, Reason: RejectDeserialize}
	var buf bytes.Buffer
	require.NoError(t, EncodeReject(&buf, msg))

	_, err := ReadMessageType(&buf)
	require.NoError(t, err)

	got, err := DecodeReject(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.ClientSeq, got.ClientSeq)
	assert.Equal(t, RejectDeserialize, got.Reason)
}

func TestRejectRoundTripApp(t *testing.T) {
	msg := Reject{ClientSeq: 6, Reason: RejectApp, AppBytes: []byte("nope")}
	var buf bytes.Buffer
	require.NoError(t, EncodeReject(&buf, msg))

	_, err := ReadMessageType(&buf)
	require.NoError(t, err)

	got, err := DecodeReject(&buf)
	require.NoError(t, err)
	assert.Equal(t, RejectApp, got.Reason)
	assert.Equal(t, msg.AppBytes, got.AppBytes)
}
