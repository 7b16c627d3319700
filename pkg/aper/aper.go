// Package aper defines the user-extension surface of the sync engine: the
// deterministic apply function application code supplies, the metadata
// that travels with every intent, and the error taxonomy.
package aper

import (
	"errors"
	"fmt"

	"github.com/jamsocket/aper/pkg/overlay"
)

// IntentMetadata is passed to every apply of an intent. The server fills
// in all three fields at submit time. Broadcasts carry only the resulting
// mutations, not the metadata, so a client's speculative apply and its
// replays receive only ClientID (the one field a client already knows for
// certain); TimestampMs and RandomSeed are zero there. An apply that reads
// TimestampMs or RandomSeed therefore gets different inputs on the server
// and on clients, and only the server's result reaches clients, through
// the broadcast mutations.
type IntentMetadata struct {
	ClientID    string
	TimestampMs int64
	RandomSeed  uint64
}

// ApplyFn is the deterministic function application code supplies to
// mutate a Store in response to a decoded intent. Two independent
// invocations of the same ApplyFn against byte-identical stores with
// identical intent and metadata must produce byte-identical stores
// stores: no wall-clock reads, no randomness, no ambient state
// beyond what `store`, `intent`, and `metadata` carry.
type ApplyFn func(h overlay.Handle, intent []byte, metadata IntentMetadata) error

// DecodeFn decodes wire bytes into an application-defined intent
// representation (typically ApplyFn decodes the bytes itself; DecodeFn
// exists separately so ServerEngine can validate shape before taking a
// store snapshot).
type DecodeFn func(intentBytes []byte) error

// AppError is a wrapper user apply code may use for its errors. The engines
// do not wrap anything themselves: whatever error apply returns, the server
// rolls back and puts it in Rejection.AppErr, and the client rolls back
// speculative and returns it from Intend without queuing anything.
type AppError struct {
	Err error
}

func (e *AppError) Error() string { return fmt.Sprintf("apply: %s", e.Err) }
func (e *AppError) Unwrap() error { return e.Err }

// NewAppError wraps err as an AppError.
func NewAppError(err error) *AppError { return &AppError{Err: err} }

// ErrDeserialize names the case where intent_bytes cannot be decoded by the
// user-supplied decoder. ServerEngine.Submit reports it as a Rejection with
// RejectDeserialize, whose Error text carries this sentinel's message; the
// sentinel itself is not returned by the engines.
var ErrDeserialize = errors.New("aper: could not deserialize intent")

// ErrStale is returned by ClientEngine.Receive when a broadcast's version
// is not strictly greater than the client's current version, except for an
// ack-only broadcast at the current version that acks this client's queue
// head, which Receive accepts. It is expected and silently discardable, not
// a protocol fault; a decreasing version is reported the same way.
var ErrStale = errors.New("aper: stale broadcast discarded")

// ErrProtocolViolation covers frame-level violations a transport can
// detect, such as a message of the wrong kind mid-stream (transport/duplex
// returns it then). The host should disconnect and re-bootstrap on this
// error.
var ErrProtocolViolation = errors.New("aper: protocol violation")
