// Package badger is a BadgerDB-backed implementation of blockstore.BlockStore,
// for a durable node store (the teacher's kvstore/badger backend, adapted to
// store DAG-CBOR-encoded MST nodes keyed by their own CID).
package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"

	"github.com/ferozsalam/atproto/blockstore"
)

// Store is a BadgerDB-backed content-addressed block store.
type Store struct {
	db *badger.DB
}

// Config holds configuration for BadgerDB.
type Config struct {
	DataDir string // Directory for data storage
}

// New creates a new BadgerDB-backed BlockStore.
func New(config *Config) (*Store, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("DataDir is required")
	}

	opts := badger.DefaultOptions(config.DataDir)
	opts = opts.WithLogger(nil) // Disable badger's verbose logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &Store{db: db}, nil
}

// Put encodes node to canonical DAG-CBOR bytes and stores it under its
// content address. Idempotent: re-putting an equal node is a no-op write.
func (s *Store) Put(ctx context.Context, node datamodel.Node) (cid.Cid, error) {
	data, err := blockstore.Encode(node)
	if err != nil {
		return cid.Undef, err
	}

	id, err := blockstore.CIDForBytes(data)
	if err != nil {
		return cid.Undef, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(id.Bytes(), data)
	})
	if err != nil {
		return cid.Undef, fmt.Errorf("blockstore/badger: put %s: %w", id, err)
	}

	return id, nil
}

// Get retrieves and decodes a node by CID.
func (s *Store) Get(ctx context.Context, id cid.Cid) (datamodel.Node, error) {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id.Bytes())
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, blockstore.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blockstore/badger: get %s: %w", id, err)
	}

	return blockstore.Decode(data)
}

// Close releases all BadgerDB resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RunGC runs BadgerDB garbage collection. Call this periodically to reclaim
// space from superseded value-log entries; the block store itself is
// append-only, unreferenced blocks are left for external GC per spec.
func (s *Store) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}
