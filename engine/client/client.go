package client

import (
	"github.com/rs/zerolog"

	"github.com/jamsocket/aper/pkg/aper"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/store"
)

// Welcome is the bootstrap state a client receives on connecting.
type Welcome struct {
	Version  uint64
	Snapshot []store.Mutation
}

// Ack identifies the client submission a Broadcast confirms, if any.
type Ack struct {
	ClientID  string
	ClientSeq uint64
}

// Broadcast is one authoritative step forward, applied to confirmed.
type Broadcast struct {
	Version   uint64
	Mutations []store.Mutation
	Ack       *Ack // nil if this broadcast does not ack this client
}

// RejectReason discriminates why a Submit the client made was rejected.
type RejectReason int

const (
	RejectDeserialize RejectReason = iota
	RejectApp
)

// Rejection reports that one of this client's own intents was refused by
// the server and never took effect.
type Rejection struct {
	ClientSeq uint64
	Reason    RejectReason
	AppErr    error
}

// RetractionReason discriminates why an intent was dropped from the queue
// during speculative replay rather than ack'd or rejected outright.
type RetractionReason int

const (
	// RetractionReplayFailed means a previously-accepted-locally intent no
	// longer applies against the latest confirmed state (e.g. it targeted
	// an item a concurrent broadcast deleted).
	RetractionReplayFailed RetractionReason = iota
	// RetractionRejected means the server explicitly rejected this intent.
	RetractionRejected
)

// Retraction is reported to the application when a queued intent is
// dropped without ever being durably applied.
type Retraction struct {
	ClientSeq uint64
	Reason    RetractionReason
	Err       error
}

type queuedIntent struct {
	seq    uint64
	intent []byte
}

// Engine is the client half of the protocol. It must be driven
// single-threaded: Intend and Receive must not interleave.
type Engine struct {
	clientID    string
	apply       aper.ApplyFn
	onRetract   func(Retraction)
	log         zerolog.Logger
	confirmed   *store.Store
	speculative *store.Store
	version     uint64
	nextSeq     uint64
	queue       []queuedIntent
}

// New constructs a client Engine. onRetract may be nil; it is called
// synchronously, once per dropped intent, whenever Receive retracts one.
func New(clientID string, apply aper.ApplyFn, onRetract func(Retraction)) *Engine {
	return &Engine{clientID: clientID, apply: apply, onRetract: onRetract, log: zerolog.Nop(), nextSeq: 1}
}

// SetLogger replaces the engine's logger. The default discards everything,
// so the core stays silent unless a host opts in.
func (e *Engine) SetLogger(l zerolog.Logger) { e.log = l }

// Bootstrap (re)initializes the engine from a fresh Welcome, discarding
// any prior confirmed/speculative state and queue. Call this once after
// connecting, and again after any reconnection - unacknowledged intents
// do not survive a reconnect.
func (e *Engine) Bootstrap(w Welcome) {
	e.confirmed = store.New()
	e.confirmed.Apply(w.Snapshot)
	e.confirmed.TakeMutations() // Apply above dirtied the log; bootstrap isn't a mutation to report
	e.version = w.Version
	e.nextSeq = 1
	e.queue = nil
	e.speculative = e.freshSpeculative()
	e.log.Debug().Uint64("version", w.Version).Int("leaves", len(w.Snapshot)).Msg("bootstrapped from welcome")
}

func (e *Engine) freshSpeculative() *store.Store {
	snap := e.confirmed.Snapshot()
	defer snap.Release()
	return store.NewFromSnapshot(snap)
}

// Version reports the last authoritative version applied to confirmed.
func (e *Engine) Version() uint64 { return e.version }

// Speculative exposes the speculative store for read access through an
// overlay. Application code should read through this handle and write
// only via Intend.
func (e *Engine) Speculative() overlay.Handle { return e.speculative }

// Confirmed exposes the confirmed store for read access, e.g. to show a
// user only what the server has actually accepted.
func (e *Engine) Confirmed() overlay.Handle { return e.confirmed }

// PendingCount reports how many intents are still queued awaiting
// acknowledgement, for metrics/backpressure decisions.
func (e *Engine) PendingCount() int { return len(e.queue) }

// Intend applies intent to speculative only, queues it, and returns the
// ClientSeq a host should frame into a Submit message. If apply fails
// against speculative, the intent is never queued and speculative is
// rolled back to its pre-attempt state.
//
// Only ClientID is filled into the IntentMetadata passed to apply here and
// during replay; TimestampMs and RandomSeed are server-assigned and never
// reach the client (broadcasts carry only mutations), so any apply that
// reads them speculatively and persists the result would diverge from the
// server's own application of the same intent.
func (e *Engine) Intend(intent []byte) (clientSeq uint64, err error) {
	snap := e.speculative.Snapshot()
	defer snap.Release()

	metadata := aper.IntentMetadata{ClientID: e.clientID}
	if err := e.apply(e.speculative, intent, metadata); err != nil {
		e.speculative.TakeMutations()
		e.speculative.Restore(snap)
		return 0, err
	}

	seq := e.nextSeq
	e.nextSeq++
	e.queue = append(e.queue, queuedIntent{seq: seq, intent: intent})
	e.log.Debug().Uint64("client_seq", seq).Int("pending", len(e.queue)).Msg("intent queued")
	return seq, nil
}

// Receive applies an authoritative Broadcast. A broadcast whose version
// is below the current version is discarded as stale (aper.ErrStale)
// rather than treated as an error. A broadcast at the *current* version
// is normally stale too, with one exception: an ack-only broadcast for
// this client's queue head - the server emits those for application-level
// no-ops without advancing the version, and the queued intent still needs
// to be garbage-collected.
func (e *Engine) Receive(b Broadcast) error {
	if b.Version == e.version {
		if b.Ack != nil && b.Ack.ClientID == e.clientID && len(e.queue) > 0 && e.queue[0].seq == b.Ack.ClientSeq {
			e.queue = e.queue[1:]
			e.recomputeSpeculative()
			return nil
		}
		return aper.ErrStale
	}
	if b.Version < e.version {
		return aper.ErrStale
	}

	e.confirmed.Apply(b.Mutations)
	e.confirmed.TakeMutations()

	if b.Ack != nil && b.Ack.ClientID == e.clientID && len(e.queue) > 0 && e.queue[0].seq == b.Ack.ClientSeq {
		e.queue = e.queue[1:]
	}

	e.version = b.Version
	e.recomputeSpeculative()
	return nil
}

// ReceiveRejection removes the rejected intent from the queue, if still
// present, and recomputes speculative without it.
func (e *Engine) ReceiveRejection(r Rejection) {
	kept := e.queue[:0]
	for _, qi := range e.queue {
		if qi.seq == r.ClientSeq {
			if e.onRetract != nil {
				e.onRetract(Retraction{ClientSeq: qi.seq, Reason: RetractionRejected, Err: r.AppErr})
			}
			continue
		}
		kept = append(kept, qi)
	}
	e.queue = kept
	e.recomputeSpeculative()
}

// recomputeSpeculative rebuilds speculative from a fresh copy of confirmed
// and replays every still-queued intent in order, dropping (and reporting)
// any that no longer apply.
func (e *Engine) recomputeSpeculative() {
	fresh := e.freshSpeculative()
	retained := e.queue[:0]
	for _, qi := range e.queue {
		snap := fresh.Snapshot()
		metadata := aper.IntentMetadata{ClientID: e.clientID}
		if err := e.apply(fresh, qi.intent, metadata); err != nil {
			fresh.TakeMutations()
			fresh.Restore(snap)
			snap.Release()
			e.log.Debug().Uint64("client_seq", qi.seq).Err(err).Msg("intent retracted during replay")
			if e.onRetract != nil {
				e.onRetract(Retraction{ClientSeq: qi.seq, Reason: RetractionReplayFailed, Err: err})
			}
			continue
		}
		snap.Release()
		retained = append(retained, qi)
	}
	e.queue = retained
	e.speculative = fresh
}
