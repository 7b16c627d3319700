package duplex

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jamsocket/aper/engine/client"
	"github.com/jamsocket/aper/pkg/aper"
	"github.com/jamsocket/aper/pkg/metrics"
	"github.com/jamsocket/aper/pkg/notify"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/wire"
)

// Client drives a client Engine over one connection. Engine access is
// serialized internally so Submit (caller goroutine) and the read loop
// never interleave engine calls.
type Client struct {
	clientID string
	conn     net.Conn
	apply    aper.ApplyFn
	log      zerolog.Logger
	broker   *notify.Broker

	mu     sync.Mutex
	engine *client.Engine
	reader *bufio.Reader
}

// NewClient wraps conn for clientID. Pass an empty clientID to let the
// server assign one (returned in the welcome). Call Connect before Run.
func NewClient(conn net.Conn, clientID string, apply aper.ApplyFn) *Client {
	c := &Client{
		clientID: clientID,
		conn:     conn,
		apply:    apply,
		log:      zerolog.Nop(),
		broker:   notify.NewBroker(),
	}
	c.engine = client.New(clientID, apply, c.onRetract)
	c.broker.Start()
	return c
}

// Dial connects to a duplex server at addr.
func Dial(addr, clientID string, apply aper.ApplyFn) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("duplex: dial %s: %w", addr, err)
	}
	return NewClient(conn, clientID, apply), nil
}

// SetLogger replaces the client's logger (default: discard).
func (c *Client) SetLogger(l zerolog.Logger) {
	c.log = l
	c.engine.SetLogger(l)
}

// ClientID reports the identity this client connected under, which the
// server may have assigned if the caller left it empty.
func (c *Client) ClientID() string { return c.clientID }

// Subscribe returns a channel of lifecycle events: acks, rejections, and
// retractions of this client's own intents.
func (c *Client) Subscribe() notify.Subscriber { return c.broker.Subscribe() }

// Unsubscribe releases a subscription from Subscribe.
func (c *Client) Unsubscribe(sub notify.Subscriber) { c.broker.Unsubscribe(sub) }

func (c *Client) onRetract(r client.Retraction) {
	eventType := notify.EventIntentRetracted
	reason := "replay_failed"
	if r.Reason == client.RetractionRejected {
		eventType = notify.EventIntentRejected
		reason = "rejected"
	}
	metrics.RetractionsTotal.WithLabelValues(reason).Inc()
	c.broker.Publish(&notify.Event{
		ID:   strconv.FormatUint(r.ClientSeq, 10),
		Type: eventType,
		Metadata: map[string]string{
			"client_seq": strconv.FormatUint(r.ClientSeq, 10),
			"reason":     reason,
		},
	})
}

// Connect sends the hello, waits for the welcome, and bootstraps the
// engine from it. It must complete before Run or Submit.
func (c *Client) Connect() error {
	var buf bytes.Buffer
	if err := wire.EncodeHello(&buf, wire.Hello{ClientID: c.clientID}); err != nil {
		return err
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("duplex: send hello: %w", err)
	}

	br := bufio.NewReader(c.conn)
	msgType, err := wire.ReadMessageType(br)
	if err != nil {
		return fmt.Errorf("duplex: read welcome: %w", err)
	}
	if msgType != wire.TypeWelcome {
		return aper.ErrProtocolViolation
	}
	welcome, err := wire.DecodeWelcome(br)
	if err != nil {
		return fmt.Errorf("duplex: decode welcome: %w", err)
	}

	c.mu.Lock()
	if c.clientID == "" {
		// The server assigned our identity; rebuild the engine under it.
		c.clientID = welcome.ClientID
		c.engine = client.New(c.clientID, c.apply, c.onRetract)
		c.engine.SetLogger(c.log)
	}
	c.mu.Unlock()
	return c.bootstrap(br, welcome)
}

func (c *Client) bootstrap(br *bufio.Reader, welcome wire.Welcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reader = br
	c.engine.Bootstrap(client.Welcome{Version: welcome.Version, Snapshot: welcome.Snapshot})
	c.log.Info().Uint64("version", welcome.Version).Msg("bootstrapped")
	c.broker.Publish(&notify.Event{Type: notify.EventClientConnected, ID: c.clientID})
	return nil
}

// Run reads broadcasts and rejections until the connection fails. A
// protocol violation or malformed frame returns an error; the host should
// discard this Client, reconnect, and bootstrap fresh.
func (c *Client) Run() error {
	c.mu.Lock()
	br := c.reader
	c.mu.Unlock()
	if br == nil {
		return fmt.Errorf("duplex: Run before Connect")
	}

	for {
		msgType, err := wire.ReadMessageType(br)
		if err != nil {
			c.broker.Publish(&notify.Event{Type: notify.EventClientDisconnected, ID: c.clientID})
			return err
		}
		switch msgType {
		case wire.TypeBroadcast:
			msg, err := wire.DecodeBroadcast(br)
			if err != nil {
				return fmt.Errorf("duplex: decode broadcast: %w", err)
			}
			c.receiveBroadcast(msg)
		case wire.TypeReject:
			msg, err := wire.DecodeReject(br)
			if err != nil {
				return fmt.Errorf("duplex: decode reject: %w", err)
			}
			c.receiveReject(msg)
		default:
			return aper.ErrProtocolViolation
		}
	}
}

func (c *Client) receiveBroadcast(msg wire.Broadcast) {
	cb := client.Broadcast{Version: msg.Version, Mutations: msg.Mutations}
	if msg.HasAck {
		cb.Ack = &client.Ack{ClientID: msg.Ack.ClientID, ClientSeq: msg.Ack.ClientSeq}
	}

	c.mu.Lock()
	err := c.engine.Receive(cb)
	pending := c.engine.PendingCount()
	c.mu.Unlock()

	if err != nil {
		c.log.Debug().Uint64("version", msg.Version).Msg("stale broadcast discarded")
		return
	}
	metrics.ClientPendingIntents.WithLabelValues(c.clientID).Set(float64(pending))
	if msg.HasAck && msg.Ack.ClientID == c.clientID {
		c.broker.Publish(&notify.Event{
			ID:       strconv.FormatUint(msg.Ack.ClientSeq, 10),
			Type:     notify.EventIntentAcked,
			Metadata: map[string]string{"client_seq": strconv.FormatUint(msg.Ack.ClientSeq, 10)},
		})
	}
}

func (c *Client) receiveReject(msg wire.Reject) {
	rej := client.Rejection{ClientSeq: msg.ClientSeq}
	if msg.Reason == wire.RejectApp {
		rej.Reason = client.RejectApp
		rej.AppErr = fmt.Errorf("%s", msg.AppBytes)
	} else {
		rej.Reason = client.RejectDeserialize
	}
	c.mu.Lock()
	c.engine.ReceiveRejection(rej)
	c.mu.Unlock()
}

// Submit applies intent speculatively and sends it to the server,
// returning the assigned client sequence number. An error from the local
// apply means nothing was queued or sent.
func (c *Client) Submit(intent []byte) (uint64, error) {
	c.mu.Lock()
	seq, err := c.engine.Intend(intent)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := wire.EncodeSubmit(&buf, wire.Submit{ClientSeq: seq, IntentBytes: intent}); err != nil {
		return 0, err
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("duplex: send submit: %w", err)
	}
	return seq, nil
}

// Read runs fn against the engine's speculative store under the client's
// lock, so reads never interleave with the read loop's mutations.
func (c *Client) Read(fn func(h overlay.Handle)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.engine.Speculative())
}

// Version reports the last authoritative version applied.
func (c *Client) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Version()
}

// Close tears the connection down and stops the event broker.
func (c *Client) Close() error {
	c.broker.Stop()
	return c.conn.Close()
}
