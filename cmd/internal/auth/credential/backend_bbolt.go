package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"pedex/cmd/security/token"
)

var credentialsBucket = []byte("credentials")

// BoltBackend is the persistent tier: a single-file bbolt database.
type BoltBackend struct {
	db    *bbolt.DB
	codec codec
}

var _ Backend = (*BoltBackend)(nil)

// NewBoltBackend wraps an open database. sealer may be nil (plaintext at rest).
func NewBoltBackend(db *bbolt.DB, sealer *token.Sealer) (*BoltBackend, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init credentials bucket: %w", err)
	}
	return &BoltBackend{db: db, codec: codec{sealer: sealer}}, nil
}

// OpenBoltBackend opens (or creates) the database file at path with 0600 permissions.
func OpenBoltBackend(path string, sealer *token.Sealer) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating credential dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	b, err := NewBoltBackend(db, sealer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) Load(_ context.Context, slot string) (Credential, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(credentialsBucket).Get([]byte(slot))
		if v == nil {
			return fmt.Errorf("%s: %w", slot, ErrNotFound)
		}
		// bbolt values are only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return Credential{}, err
	}
	return b.codec.decode(slot, data)
}

func (b *BoltBackend) Store(_ context.Context, slot string, c Credential) error {
	data, err := b.codec.encode(slot, c)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(credentialsBucket).Put([]byte(slot), data)
	})
}

func (b *BoltBackend) Delete(_ context.Context, slot string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(credentialsBucket).Delete([]byte(slot))
	})
}

// Close closes the underlying database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}
