package overlay

import "encoding/binary"

// Codec serializes and deserializes the value an Atom or AtomMap entry
// holds. The overlay layer never interprets bytes itself; codecs are
// user-supplied in general, but the ready-made ones below cover the common
// scalar cases so application code rarely has to write its own.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
	Default() T
}

// KeyCodec maps a typed key onto a PathSegment and back, for AtomMap and
// Map. Segment bytes must be stable and injective: two distinct keys must
// never encode to the same segment.
type KeyCodec[K any] interface {
	EncodeKey(k K) []byte
	DecodeKey(seg []byte) (K, error)
}

// StringCodec stores a string as its raw UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Encode(v string) []byte           { return []byte(v) }
func (StringCodec) Decode(b []byte) (string, error)  { return string(b), nil }
func (StringCodec) Default() string                  { return "" }
func (StringCodec) EncodeKey(k string) []byte        { return []byte(k) }
func (StringCodec) DecodeKey(seg []byte) (string, error) { return string(seg), nil }

// BoolCodec stores a bool as a single byte: 0x00 or 0x01. An absent leaf
// decodes to Default() == false.
type BoolCodec struct{}

func (BoolCodec) Encode(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func (BoolCodec) Decode(b []byte) (bool, error) {
	return len(b) > 0 && b[0] != 0, nil
}

func (BoolCodec) Default() bool { return false }

// Int64Codec stores an int64 as a zigzag varint (binary.PutVarint), from the
// same encoding/binary varint family whose unsigned form (PutUvarint) pkg/wire
// uses for its length prefixes.
type Int64Codec struct{}

func (Int64Codec) Encode(v int64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, v)
	return buf[:n]
}

func (Int64Codec) Decode(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	v, _ := binary.Varint(b)
	return v, nil
}

func (Int64Codec) Default() int64 { return 0 }
