package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jamsocket/aper/pkg/store"
)

// MessageType tags which of the five logical messages follows on the wire.
type MessageType byte

const (
	TypeHello MessageType = iota
	TypeWelcome
	TypeSubmit
	TypeBroadcast
	TypeReject
)

// Hello is C→S: the client announces its identity.
type Hello struct {
	ClientID string
}

// Welcome is S→C: the authoritative snapshot a client bootstraps from.
type Welcome struct {
	ClientID string
	Version  uint64
	Snapshot []store.Mutation // ordered Set(path, value) entries, one per present leaf
}

// Submit is C→S: one queued intent.
type Submit struct {
	ClientSeq   uint64
	IntentBytes []byte
}

// Ack identifies the client submission a Broadcast confirms, if any.
type Ack struct {
	ClientID  string
	ClientSeq uint64
}

// Broadcast is S→C: the authoritative effect of one Submit (or, for a
// host-internal application-initiated change, one with no Ack).
type Broadcast struct {
	Version   uint64
	Mutations []store.Mutation
	HasAck    bool
	Ack       Ack
}

// RejectReason discriminates why a Submit was rejected.
type RejectReason byte

const (
	RejectDeserialize RejectReason = iota
	RejectApp
)

// Reject is S→C: the Submit identified by ClientSeq produced no broadcast.
type Reject struct {
	ClientSeq uint64
	Reason    RejectReason
	AppBytes  []byte // only meaningful when Reason == RejectApp
}

func writeString(w io.Writer, s string) error {
	return EncodeBytes(w, []byte(s))
}

func readString(r byteReader) (string, error) {
	b, err := DecodeBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeHello writes a Hello message, including its leading type byte.
func EncodeHello(w io.Writer, h Hello) error {
	if _, err := w.Write([]byte{byte(TypeHello)}); err != nil {
		return err
	}
	return writeString(w, h.ClientID)
}

// DecodeHello reads a Hello body (the type byte must already be consumed).
func DecodeHello(r byteReader) (Hello, error) {
	clientID, err := readString(r)
	if err != nil {
		return Hello{}, fmt.Errorf("wire: decode hello: %w", err)
	}
	return Hello{ClientID: clientID}, nil
}

// EncodeWelcome writes a Welcome message, including its leading type byte.
func EncodeWelcome(w io.Writer, msg Welcome) error {
	if _, err := w.Write([]byte{byte(TypeWelcome)}); err != nil {
		return err
	}
	if err := writeString(w, msg.ClientID); err != nil {
		return err
	}
	if err := writeUvarint(w, msg.Version); err != nil {
		return err
	}
	return EncodeMutations(w, msg.Snapshot)
}

// DecodeWelcome reads a Welcome body (the type byte must already be consumed).
func DecodeWelcome(r byteReader) (Welcome, error) {
	clientID, err := readString(r)
	if err != nil {
		return Welcome{}, fmt.Errorf("wire: decode welcome client_id: %w", err)
	}
	version, err := binary.ReadUvarint(r)
	if err != nil {
		return Welcome{}, fmt.Errorf("wire: decode welcome version: %w", err)
	}
	snapshot, err := DecodeMutations(r)
	if err != nil {
		return Welcome{}, fmt.Errorf("wire: decode welcome snapshot: %w", err)
	}
	return Welcome{ClientID: clientID, Version: version, Snapshot: snapshot}, nil
}

// EncodeSubmit writes a Submit message, including its leading type byte.
func EncodeSubmit(w io.Writer, msg Submit) error {
	if _, err := w.Write([]byte{byte(TypeSubmit)}); err != nil {
		return err
	}
	if err := writeUvarint(w, msg.ClientSeq); err != nil {
		return err
	}
	return EncodeBytes(w, msg.IntentBytes)
}

// DecodeSubmit reads a Submit body (the type byte must already be consumed).
func DecodeSubmit(r byteReader) (Submit, error) {
	seq, err := binary.ReadUvarint(r)
	if err != nil {
		return Submit{}, fmt.Errorf("wire: decode submit client_seq: %w", err)
	}
	intent, err := DecodeBytes(r)
	if err != nil {
		return Submit{}, fmt.Errorf("wire: decode submit intent: %w", err)
	}
	return Submit{ClientSeq: seq, IntentBytes: intent}, nil
}

// EncodeBroadcast writes a Broadcast message, including its leading type byte.
func EncodeBroadcast(w io.Writer, msg Broadcast) error {
	if _, err := w.Write([]byte{byte(TypeBroadcast)}); err != nil {
		return err
	}
	if err := writeUvarint(w, msg.Version); err != nil {
		return err
	}
	if err := EncodeMutations(w, msg.Mutations); err != nil {
		return err
	}
	if !msg.HasAck {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	if err := writeString(w, msg.Ack.ClientID); err != nil {
		return err
	}
	return writeUvarint(w, msg.Ack.ClientSeq)
}

// DecodeBroadcast reads a Broadcast body (the type byte must already be
// consumed).
func DecodeBroadcast(r byteReader) (Broadcast, error) {
	version, err := binary.ReadUvarint(r)
	if err != nil {
		return Broadcast{}, fmt.Errorf("wire: decode broadcast version: %w", err)
	}
	muts, err := DecodeMutations(r)
	if err != nil {
		return Broadcast{}, fmt.Errorf("wire: decode broadcast mutations: %w", err)
	}
	var hasAckByte [1]byte
	if _, err := io.ReadFull(r, hasAckByte[:]); err != nil {
		return Broadcast{}, fmt.Errorf("wire: decode broadcast ack flag: %w", err)
	}
	if hasAckByte[0] == 0 {
		return Broadcast{Version: version, Mutations: muts}, nil
	}
	clientID, err := readString(r)
	if err != nil {
		return Broadcast{}, fmt.Errorf("wire: decode broadcast ack client_id: %w", err)
	}
	seq, err := binary.ReadUvarint(r)
	if err != nil {
		return Broadcast{}, fmt.Errorf("wire: decode broadcast ack client_seq: %w", err)
	}
	return Broadcast{
		Version:   version,
		Mutations: muts,
		HasAck:    true,
		Ack:       Ack{ClientID: clientID, ClientSeq: seq},
	}, nil
}

// EncodeReject writes a Reject message, including its leading type byte.
func EncodeReject(w io.Writer, msg Reject) error {
	if _, err := w.Write([]byte{byte(TypeReject)}); err != nil {
		return err
	}
	if err := writeUvarint(w, msg.ClientSeq); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(msg.Reason)}); err != nil {
		return err
	}
	if msg.Reason == RejectApp {
		return EncodeBytes(w, msg.AppBytes)
	}
	return nil
}

// DecodeReject reads a Reject body (the type byte must already be consumed).
func DecodeReject(r byteReader) (Reject, error) {
	seq, err := binary.ReadUvarint(r)
	if err != nil {
		return Reject{}, fmt.Errorf("wire: decode reject client_seq: %w", err)
	}
	var reasonByte [1]byte
	if _, err := io.ReadFull(r, reasonByte[:]); err != nil {
		return Reject{}, fmt.Errorf("wire: decode reject reason: %w", err)
	}
	reason := RejectReason(reasonByte[0])
	if reason != RejectApp {
		return Reject{ClientSeq: seq, Reason: reason}, nil
	}
	appBytes, err := DecodeBytes(r)
	if err != nil {
		return Reject{}, fmt.Errorf("wire: decode reject app bytes: %w", err)
	}
	return Reject{ClientSeq: seq, Reason: reason, AppBytes: appBytes}, nil
}

// ReadMessageType peeks the leading type byte off r, consuming it.
func ReadMessageType(r byteReader) (MessageType, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("wire: decode message type: %w", err)
	}
	return MessageType(b[0]), nil
}
