package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for the BadgerDB-backed Blob.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory
	// is true.
	Path string

	// InMemory disables disk persistence. Useful for testing.
	InMemory bool

	// Key is the storage key the blob lives under.
	Key string
}

// Badger is a Blob backed by an embedded BadgerDB instance.
type Badger struct {
	db  *badger.DB
	key []byte
}

// OpenBadger opens a BadgerDB instance and returns a Blob bound to the
// configured key. The caller owns Close.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}

	key := cfg.Key
	if key == "" {
		key = "notifications"
	}
	return &Badger{db: db, key: []byte(key)}, nil
}

func (b *Badger) Get() ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return out, nil
}

func (b *Badger) Put(data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, data)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (b *Badger) Delete() error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}
