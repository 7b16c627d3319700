// Package wire implements the binary encodings for paths,
// mutations, and the five logical wire messages (Hello, Welcome, Submit,
// Broadcast, Reject). The engines in engine/server and engine/client never
// import this package directly - they speak in store.Mutation and Go
// structs; wire is for a transport (see transport/duplex) to encode/decode
// at the network boundary.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jamsocket/aper/pkg/store"
)

// EncodePath writes path as length-prefixed-varint(segment count) followed
// by (segment-length varint ∥ segment-bytes) per segment.
func EncodePath(w io.Writer, p store.Path) error {
	if err := writeUvarint(w, uint64(len(p))); err != nil {
		return err
	}
	for _, seg := range p {
		if err := writeUvarint(w, uint64(len(seg))); err != nil {
			return err
		}
		if _, err := w.Write(seg); err != nil {
			return err
		}
	}
	return nil
}

// DecodePath reads a path previously written by EncodePath.
func DecodePath(r io.ByteReader) (store.Path, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode path length: %w", err)
	}
	p := make(store.Path, n)
	for i := range p {
		segLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("wire: decode segment %d length: %w", i, err)
		}
		seg := make(store.PathSegment, segLen)
		for j := range seg {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("wire: decode segment %d byte %d: %w", i, j, err)
			}
			seg[j] = b
		}
		p[i] = seg
	}
	return p, nil
}

// EncodeBytes writes a length-prefixed-varint byte string.
func EncodeBytes(w io.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// DecodeBytes reads a byte string previously written by EncodeBytes. r must
// also implement io.Reader (byteReader satisfies both).
func DecodeBytes(r byteReader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode bytes length: %w", err)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("wire: decode bytes body: %w", err)
	}
	return out, nil
}

// byteReader is the minimal surface DecodeBytes/DecodeMutation need: varint
// decoding requires ByteReader, body reads require Reader.
type byteReader interface {
	io.Reader
	io.ByteReader
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// mutationTag distinguishes Set from Delete on the wire.
type mutationTag byte

const (
	tagSet    mutationTag = 0
	tagDelete mutationTag = 1
)

// EncodeMutation writes one Mutation: a tag byte, the path, and (for Set
// only) the value bytes.
func EncodeMutation(w io.Writer, m store.Mutation) error {
	switch m.Kind {
	case store.KindSet:
		if _, err := w.Write([]byte{byte(tagSet)}); err != nil {
			return err
		}
		if err := EncodePath(w, m.Path); err != nil {
			return err
		}
		return EncodeBytes(w, m.Value)
	case store.KindDelete:
		if _, err := w.Write([]byte{byte(tagDelete)}); err != nil {
			return err
		}
		return EncodePath(w, m.Path)
	default:
		return fmt.Errorf("wire: unknown mutation kind %d", m.Kind)
	}
}

// DecodeMutation reads one Mutation previously written by EncodeMutation.
func DecodeMutation(r byteReader) (store.Mutation, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return store.Mutation{}, fmt.Errorf("wire: decode mutation tag: %w", err)
	}
	path, err := DecodePath(r)
	if err != nil {
		return store.Mutation{}, err
	}
	switch mutationTag(tagBuf[0]) {
	case tagSet:
		value, err := DecodeBytes(r)
		if err != nil {
			return store.Mutation{}, err
		}
		return store.Set(path, value), nil
	case tagDelete:
		return store.Delete(path), nil
	default:
		return store.Mutation{}, fmt.Errorf("wire: unknown mutation tag %d", tagBuf[0])
	}
}

// EncodeMutations writes a count-prefixed sequence of Mutations.
func EncodeMutations(w io.Writer, muts []store.Mutation) error {
	if err := writeUvarint(w, uint64(len(muts))); err != nil {
		return err
	}
	for _, m := range muts {
		if err := EncodeMutation(w, m); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMutations reads a sequence previously written by EncodeMutations.
func DecodeMutations(r byteReader) ([]store.Mutation, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode mutation count: %w", err)
	}
	out := make([]store.Mutation, n)
	for i := range out {
		m, err := DecodeMutation(r)
		if err != nil {
			return nil, fmt.Errorf("wire: decode mutation %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}
