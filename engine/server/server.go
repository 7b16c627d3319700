package server

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jamsocket/aper/pkg/aper"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/store"
)

// WelcomePacket is returned by Connect: the state a newly connecting
// client bootstraps from.
type WelcomePacket struct {
	Version  uint64
	Snapshot []store.Mutation
}

// Ack identifies the submission a Broadcast confirms.
type Ack struct {
	ClientID  string
	ClientSeq uint64
}

// Broadcast is the authoritative effect of a successful Submit.
type Broadcast struct {
	Version   uint64
	Mutations []store.Mutation
	Ack       *Ack
}

// RejectReason discriminates why Submit produced no broadcast.
type RejectReason int

const (
	RejectDeserialize RejectReason = iota
	RejectApp
)

// Rejection is returned instead of a Broadcast when Submit's intent could
// not be applied.
type Rejection struct {
	ClientSeq uint64
	Reason    RejectReason
	AppErr    error // set only when Reason == RejectApp
}

func (r *Rejection) Error() string {
	if r.Reason == RejectApp {
		return fmt.Sprintf("server: rejected client_seq %d: %s", r.ClientSeq, r.AppErr)
	}
	return fmt.Sprintf("server: rejected client_seq %d: %s", r.ClientSeq, aper.ErrDeserialize)
}

// DecodeFn validates intent_bytes before ServerEngine takes a snapshot and
// invokes Apply. Returning a non-nil error here yields Rejection{Deserialize}
// without ever touching the Store.
type DecodeFn func(intentBytes []byte) error

// Engine is the server half of the protocol: single authoritative Store,
// a monotonic version counter, and the user-supplied Apply/Decode
// functions. It performs no I/O and must be driven under a single-writer
// discipline: Connect and Submit are not safe to call concurrently
// against the same Engine.
type Engine struct {
	store   *store.Store
	version uint64
	apply   aper.ApplyFn
	decode  DecodeFn
	log     zerolog.Logger
}

// New constructs a server Engine with an empty Store at version 0. decode
// may be nil, in which case every intent is assumed well-formed and only
// apply's own error return can produce a Rejection.
func New(apply aper.ApplyFn, decode DecodeFn) *Engine {
	return &Engine{store: store.New(), apply: apply, decode: decode, log: zerolog.Nop()}
}

// NewFrom constructs a server Engine whose Store is rebuilt from a
// previously persisted welcome snapshot (pkg/persist), resuming at the
// persisted version instead of starting empty.
func NewFrom(apply aper.ApplyFn, decode DecodeFn, version uint64, snapshot []store.Mutation) *Engine {
	e := New(apply, decode)
	e.store.Apply(snapshot)
	e.store.TakeMutations() // rebuilding is not a mutation anyone needs broadcast
	e.version = version
	return e
}

// SetLogger replaces the engine's logger. The default discards everything.
func (e *Engine) SetLogger(l zerolog.Logger) { e.log = l }

// Version reports the engine's current authoritative version.
func (e *Engine) Version() uint64 { return e.version }

// Handle exposes the authoritative store for read-only inspection (e.g. a
// host building a Welcome for a transport, or wiring metrics off dirty
// length). Treat it as read-only: writes must go through Submit.
func (e *Engine) Handle() overlay.Handle { return e.store }

// Connect returns the WelcomePacket a newly connecting client bootstraps
// from: the current version and every present leaf, expressed as an
// ordered sequence of Set mutations.
func (e *Engine) Connect() WelcomePacket {
	snap := e.store.Snapshot()
	defer snap.Release()
	return WelcomePacket{
		Version:  e.version,
		Snapshot: snap.Leaves(),
	}
}

// Submit applies one client intent: decode, snapshot, apply,
// rollback-or-drain, version.
// timestampMs and randomSeed are host-supplied (the engine itself never
// reads a clock or RNG, keeping Apply's inputs fully explicit).
//
// On success it returns a Broadcast to fan out to every connected client
// (including the submitter, so it can reconcile its speculative queue).
// On failure it returns a Rejection meant only for the submitting client;
// the Store and version are left exactly as they were.
func (e *Engine) Submit(clientID string, clientSeq uint64, intentBytes []byte, timestampMs int64, randomSeed uint64) (*Broadcast, *Rejection) {
	if e.decode != nil {
		if err := e.decode(intentBytes); err != nil {
			e.log.Warn().Str("client_id", clientID).Uint64("client_seq", clientSeq).Err(err).Msg("intent failed to decode")
			return nil, &Rejection{ClientSeq: clientSeq, Reason: RejectDeserialize}
		}
	}

	snapshot := e.store.Snapshot()
	defer snapshot.Release()

	metadata := aper.IntentMetadata{
		ClientID:    clientID,
		TimestampMs: timestampMs,
		RandomSeed:  randomSeed,
	}

	if err := e.apply(e.store, intentBytes, metadata); err != nil {
		e.store.TakeMutations() // discard any partial writes before restore
		e.store.Restore(snapshot)
		e.log.Debug().Str("client_id", clientID).Uint64("client_seq", clientSeq).Err(err).Msg("intent rejected by apply")
		return nil, &Rejection{ClientSeq: clientSeq, Reason: RejectApp, AppErr: err}
	}

	muts := e.store.TakeMutations()
	ack := &Ack{ClientID: clientID, ClientSeq: clientSeq}
	if len(muts) == 0 {
		// Application-level no-op: version does not advance, but the
		// submitter still needs an ack to garbage-collect the intent.
		return &Broadcast{Version: e.version, Mutations: nil, Ack: ack}, nil
	}

	e.version++
	e.log.Debug().Str("client_id", clientID).Uint64("version", e.version).Int("mutations", len(muts)).Msg("broadcast produced")
	return &Broadcast{Version: e.version, Mutations: muts, Ack: ack}, nil
}
