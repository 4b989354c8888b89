// Package metastore persists the hash each ComputeNode last executed
// successfully with, so a later run with lazy execution
// enabled can skip recomputation when nothing about a node has changed.
package metastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/Bayer-Group/phenex-go/internal/node"
)

const nodeHashKeyPrefix = "node_hash:"

// BadgerMetaStore implements node.MetaStore on top of an embedded BadgerDB,
// giving lazy execution a cache that survives process restarts.
type BadgerMetaStore struct {
	db *badger.DB
}

// Open opens (creating if necessary) a BadgerDB database at dir and wraps
// it as a node.MetaStore.
func Open(dir string) (*BadgerMetaStore, error) {
	opts := badger.DefaultOptions(dir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("metastore: open badger db at %q: %w", dir, err)
	}
	return &BadgerMetaStore{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *BadgerMetaStore) Close() error {
	return s.db.Close()
}

type record struct {
	Hash string `json:"hash"`
}

// Get satisfies node.MetaStore.
func (s *BadgerMetaStore) Get(ctx context.Context, nodeName string) (string, bool, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nodeHashKeyPrefix + nodeName))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("metastore: get hash for node %q: %w", nodeName, err)
	}
	if rec.Hash == "" {
		return "", false, nil
	}
	return rec.Hash, true, nil
}

// Put satisfies node.MetaStore.
func (s *BadgerMetaStore) Put(ctx context.Context, nodeName, hash string) error {
	data, err := json.Marshal(record{Hash: hash})
	if err != nil {
		return fmt.Errorf("metastore: marshal hash record for node %q: %w", nodeName, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(nodeHashKeyPrefix+nodeName), data)
	})
	if err != nil {
		return fmt.Errorf("metastore: put hash for node %q: %w", nodeName, err)
	}
	return nil
}

// Clear removes every recorded hash, forcing the next lazy execution of
// every node to recompute regardless of content hash.
func (s *BadgerMetaStore) Clear(ctx context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(nodeHashKeyPrefix)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// InMemoryMetaStore is a map-backed node.MetaStore for tests and for
// workflows that don't need lazy-execution state to survive a restart.
type InMemoryMetaStore struct {
	hashes map[string]string
}

// NewInMemoryMetaStore builds an empty InMemoryMetaStore.
func NewInMemoryMetaStore() *InMemoryMetaStore {
	return &InMemoryMetaStore{hashes: make(map[string]string)}
}

// Get satisfies node.MetaStore.
func (s *InMemoryMetaStore) Get(ctx context.Context, nodeName string) (string, bool, error) {
	h, ok := s.hashes[nodeName]
	return h, ok, nil
}

// Put satisfies node.MetaStore.
func (s *InMemoryMetaStore) Put(ctx context.Context, nodeName, hash string) error {
	s.hashes[nodeName] = hash
	return nil
}

var (
	_ node.MetaStore = (*BadgerMetaStore)(nil)
	_ node.MetaStore = (*InMemoryMetaStore)(nil)
)
