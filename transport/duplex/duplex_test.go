package duplex

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsocket/aper/engine/server"
	"github.com/jamsocket/aper/pkg/notify"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/tasklist"
)

// connect wires one client to srv over an in-memory pipe.
func connect(t *testing.T, srv *Server, clientID string) *Client {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	go srv.ServeConn(serverSide)
	c := NewClient(clientSide, clientID, tasklist.Apply)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Connect())
	go func() { _ = c.Run() }()
	return c
}

func view(c *Client) []tasklist.TaskView {
	var out []tasklist.TaskView
	c.Read(func(h overlay.Handle) {
		out = tasklist.Attach(h).View()
	})
	return out
}

func waitForEvent(t *testing.T, sub notify.Subscriber, want notify.EventType) *notify.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSubmitPropagatesToAllClients(t *testing.T) {
	srv := NewServer(server.New(tasklist.Apply, tasklist.Decode))
	a := connect(t, srv, "client-a")
	b := connect(t, srv, "client-b")

	subA := a.Subscribe()
	defer a.Unsubscribe(subA)

	_, err := a.Submit(tasklist.Intent{Kind: tasklist.KindCreate, TaskID: "t1", Name: "milk"}.Encode())
	require.NoError(t, err)
	waitForEvent(t, subA, notify.EventIntentAcked)

	// A's speculative view shows the task immediately; B converges once
	// the broadcast drains.
	viewA := view(a)
	require.Len(t, viewA, 1)
	assert.Equal(t, "milk", viewA[0].Name)

	require.Eventually(t, func() bool {
		v := view(b)
		return len(v) == 1 && v[0].Name == "milk"
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, b.Version())
}

func TestServerAssignsIdentityWhenHelloIsAnonymous(t *testing.T) {
	srv := NewServer(server.New(tasklist.Apply, tasklist.Decode))
	c := connect(t, srv, "")
	assert.NotEmpty(t, c.ClientID())

	_, err := c.Submit(tasklist.Intent{Kind: tasklist.KindSetTitle, Name: "groceries"}.Encode())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Version() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedIntentFailsLocallyWithoutSending(t *testing.T) {
	srv := NewServer(server.New(tasklist.Apply, tasklist.Decode))
	c := connect(t, srv, "client-a")

	_, err := c.Submit([]byte{0xEE})
	require.Error(t, err)
	assert.EqualValues(t, 0, c.Version())
}

func TestDuplicateCreateRaceConverges(t *testing.T) {
	srv := NewServer(server.New(tasklist.Apply, tasklist.Decode))
	a := connect(t, srv, "client-a")
	b := connect(t, srv, "client-b")

	// Both clients race to create the same task id. Whichever Submit the
	// server processes second is rejected; the losing client drops its
	// speculative copy and converges on the winner's broadcast. If the
	// loser had already seen the winner's broadcast before submitting,
	// its local apply fails instead and nothing is sent - both paths end
	// in the same converged state.
	_, errA := a.Submit(tasklist.Intent{Kind: tasklist.KindCreate, TaskID: "t1", Name: "from a"}.Encode())
	_, errB := b.Submit(tasklist.Intent{Kind: tasklist.KindCreate, TaskID: "t1", Name: "from b"}.Encode())
	require.NoError(t, errA)
	_ = errB

	require.Eventually(t, func() bool {
		va, vb := view(a), view(b)
		return len(va) == 1 && len(vb) == 1 && va[0].Name == vb[0].Name && a.Version() == b.Version()
	}, 2*time.Second, 10*time.Millisecond)
}
