package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/jamsocket/aper/pkg/store"
	"github.com/jamsocket/aper/pkg/wire"
)

var (
	// Bucket names
	bucketMeta   = []byte("meta")
	bucketLeaves = []byte("leaves")

	keyVersion = []byte("version")
)

// BoltStore persists a server's welcome snapshot - every present leaf plus
// the authoritative version - so a restarted ServerEngine resumes from its
// last saved state instead of starting empty. The on-disk leaf keys use the
// same varint path encoding as the wire, so a saved snapshot is byte-stable
// across releases for as long as the wire format is.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "aper.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMeta, bucketLeaves} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot atomically replaces the persisted snapshot with the given
// version and leaves. leaves must all be Set mutations, as produced by
// StoreView.Leaves or ServerEngine.Connect.
func (s *BoltStore) SaveSnapshot(version uint64, leaves []store.Mutation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketLeaves); err != nil {
			return fmt.Errorf("failed to clear leaves: %w", err)
		}
		b, err := tx.CreateBucket(bucketLeaves)
		if err != nil {
			return fmt.Errorf("failed to recreate leaves: %w", err)
		}
		for _, m := range leaves {
			if m.Kind != store.KindSet {
				return fmt.Errorf("snapshot leaf at %s is not a Set", m.Path)
			}
			var key bytes.Buffer
			if err := wire.EncodePath(&key, m.Path); err != nil {
				return fmt.Errorf("failed to encode leaf path %s: %w", m.Path, err)
			}
			if err := b.Put(key.Bytes(), m.Value); err != nil {
				return fmt.Errorf("failed to put leaf %s: %w", m.Path, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		var vbuf [8]byte
		binary.BigEndian.PutUint64(vbuf[:], version)
		return meta.Put(keyVersion, vbuf[:])
	})
}

// LoadSnapshot returns the persisted version and leaves. A database that
// has never been saved to returns (0, nil, nil) - indistinguishable from an
// empty store at version 0, which is exactly what a fresh engine wants.
func (s *BoltStore) LoadSnapshot() (uint64, []store.Mutation, error) {
	var version uint64
	var leaves []store.Mutation
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyVersion); v != nil {
			version = binary.BigEndian.Uint64(v)
		}
		return tx.Bucket(bucketLeaves).ForEach(func(k, v []byte) error {
			path, err := wire.DecodePath(bytes.NewReader(k))
			if err != nil {
				return fmt.Errorf("failed to decode leaf key: %w", err)
			}
			value := make([]byte, len(v))
			copy(value, v)
			leaves = append(leaves, store.Set(path, value))
			return nil
		})
	})
	if err != nil {
		return 0, nil, err
	}
	return version, leaves, nil
}
