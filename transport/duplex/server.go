package duplex

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jamsocket/aper/engine/server"
	"github.com/jamsocket/aper/pkg/metrics"
	"github.com/jamsocket/aper/pkg/store"
	"github.com/jamsocket/aper/pkg/wire"
)

// outboundBuffer is how many encoded frames may queue per connection
// before the server gives up on that client and drops the connection. A
// client that cannot drain its socket this far behind is better served by
// reconnecting and bootstrapping from a fresh welcome.
const outboundBuffer = 64

// Server owns a server Engine and serves it over accepted connections.
// All engine access is serialized through an internal mutex, satisfying
// the engine's single-writer discipline while letting each connection run
// its own read goroutine.
type Server struct {
	engine *server.Engine
	log    zerolog.Logger

	mu      sync.Mutex
	conns   map[string]*serverConn
	ln      net.Listener
	closed  bool
	submits uint64
}

// compactEvery is how many submits pass between arena compactions of the
// authoritative store.
const compactEvery = 256

type serverConn struct {
	clientID string
	conn     net.Conn
	out      chan []byte
}

// NewServer wraps engine for serving. The engine must not be driven by
// anyone else while the Server owns it.
func NewServer(engine *server.Engine) *Server {
	return &Server{
		engine: engine,
		log:    zerolog.Nop(),
		conns:  make(map[string]*serverConn),
	}
}

// SetLogger replaces the server's logger (default: discard).
func (s *Server) SetLogger(l zerolog.Logger) { s.log = l }

// Welcome returns the engine's current welcome packet, for hosts that
// persist snapshots out of band.
func (s *Server) Welcome() server.WelcomePacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Connect()
}

// Version reports the engine's current authoritative version.
func (s *Server) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Version()
}

// Serve accepts connections from ln until it is closed, handling each in
// its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("duplex: accept: %w", err)
		}
		go s.ServeConn(conn)
	}
}

// Close stops accepting and drops every live connection.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	conns := make([]*serverConn, 0, len(s.conns))
	for _, sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, sc := range conns {
		sc.conn.Close()
	}
	return err
}

// ServeConn runs the protocol on one connection until it fails or the
// peer disconnects. It blocks; Serve calls it in a goroutine, and tests
// may call it directly on a pipe.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)

	msgType, err := wire.ReadMessageType(br)
	if err != nil || msgType != wire.TypeHello {
		s.log.Warn().Err(err).Msg("connection did not open with hello")
		return
	}
	hello, err := wire.DecodeHello(br)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad hello")
		return
	}
	clientID := hello.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	logger := s.log.With().Str("client_id", clientID).Logger()

	sc := &serverConn{clientID: clientID, conn: conn, out: make(chan []byte, outboundBuffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if prev, ok := s.conns[clientID]; ok {
		// A reconnect with the same identity supersedes the old session.
		prev.conn.Close()
	}
	s.conns[clientID] = sc
	welcome := s.engine.Connect()
	// Queued under the lock so no broadcast can be queued ahead of it.
	sc.send(encodeWelcome(clientID, welcome))
	s.mu.Unlock()
	metrics.ConnectedClients.Inc()
	logger.Info().Uint64("version", welcome.Version).Int("leaves", len(welcome.Snapshot)).Msg("client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range sc.out {
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()

	s.readLoop(br, sc, logger)

	s.mu.Lock()
	if s.conns[clientID] == sc {
		delete(s.conns, clientID)
	}
	s.mu.Unlock()
	close(sc.out)
	<-done
	metrics.ConnectedClients.Dec()
	logger.Info().Msg("client disconnected")
}

func (s *Server) readLoop(br *bufio.Reader, sc *serverConn, logger zerolog.Logger) {
	for {
		msgType, err := wire.ReadMessageType(br)
		if err != nil {
			return
		}
		if msgType != wire.TypeSubmit {
			logger.Warn().Uint8("type", uint8(msgType)).Msg("unexpected message from client")
			return
		}
		sub, err := wire.DecodeSubmit(br)
		if err != nil {
			logger.Warn().Err(err).Msg("bad submit frame")
			return
		}
		s.handleSubmit(sc, sub, logger)
	}
}

func (s *Server) handleSubmit(sc *serverConn, sub wire.Submit, logger zerolog.Logger) {
	// Held through fan-out so frames are queued in version order; send never
	// blocks.
	s.mu.Lock()
	defer s.mu.Unlock()
	bc, rej := s.engine.Submit(sc.clientID, sub.ClientSeq, sub.IntentBytes, time.Now().UnixMilli(), rand.Uint64())
	var peers []*serverConn
	if bc != nil {
		peers = make([]*serverConn, 0, len(s.conns))
		for _, peer := range s.conns {
			peers = append(peers, peer)
		}
	}
	s.submits++
	if s.submits%compactEvery == 0 {
		if st, ok := s.engine.Handle().(*store.Store); ok {
			st.Compact()
			metrics.StoreArenaSize.Set(float64(st.ArenaSize()))
		}
	}

	if rej != nil {
		switch rej.Reason {
		case server.RejectDeserialize:
			metrics.SubmitsTotal.WithLabelValues("reject_deserialize").Inc()
		default:
			metrics.SubmitsTotal.WithLabelValues("reject_app").Inc()
		}
		sc.send(encodeReject(rej))
		return
	}

	if len(bc.Mutations) == 0 {
		metrics.SubmitsTotal.WithLabelValues("noop").Inc()
	} else {
		metrics.SubmitsTotal.WithLabelValues("broadcast").Inc()
	}
	metrics.StoreVersion.Set(float64(bc.Version))
	metrics.BroadcastMutations.Set(float64(len(bc.Mutations)))

	frame := encodeBroadcast(bc)
	timer := metrics.NewTimer()
	for _, peer := range peers {
		if !peer.send(frame) {
			logger.Warn().Str("peer", peer.clientID).Msg("peer too far behind, dropping connection")
			peer.conn.Close()
		}
	}
	timer.ObserveDuration(metrics.BroadcastFanoutDuration)
}

// send queues a frame, reporting false if the connection's buffer is full.
func (sc *serverConn) send(frame []byte) bool {
	select {
	case sc.out <- frame:
		return true
	default:
		return false
	}
}

func encodeWelcome(clientID string, w server.WelcomePacket) []byte {
	var buf bytes.Buffer
	_ = wire.EncodeWelcome(&buf, wire.Welcome{
		ClientID: clientID,
		Version:  w.Version,
		Snapshot: w.Snapshot,
	})
	return buf.Bytes()
}

func encodeBroadcast(bc *server.Broadcast) []byte {
	msg := wire.Broadcast{Version: bc.Version, Mutations: bc.Mutations}
	if bc.Ack != nil {
		msg.HasAck = true
		msg.Ack = wire.Ack{ClientID: bc.Ack.ClientID, ClientSeq: bc.Ack.ClientSeq}
	}
	var buf bytes.Buffer
	_ = wire.EncodeBroadcast(&buf, msg)
	return buf.Bytes()
}

func encodeReject(rej *server.Rejection) []byte {
	msg := wire.Reject{ClientSeq: rej.ClientSeq}
	if rej.Reason == server.RejectApp {
		msg.Reason = wire.RejectApp
		if rej.AppErr != nil {
			msg.AppBytes = []byte(rej.AppErr.Error())
		}
	} else {
		msg.Reason = wire.RejectDeserialize
	}
	var buf bytes.Buffer
	_ = wire.EncodeReject(&buf, msg)
	return buf.Bytes()
}
