// Package memory is an in-memory implementation of blockstore.BlockStore.
// Suitable for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"

	"github.com/ferozsalam/atproto/blockstore"
)

// Store is an in-memory, content-addressed block store.
type Store struct {
	data sync.Map // map[string][]byte (cid key-string -> canonical DAG-CBOR bytes)
}

// New creates a new in-memory BlockStore.
func New() *Store {
	return &Store{}
}

// Put encodes node and stores it under its content address.
func (s *Store) Put(ctx context.Context, node datamodel.Node) (cid.Cid, error) {
	data, err := blockstore.Encode(node)
	if err != nil {
		return cid.Undef, err
	}

	id, err := blockstore.CIDForBytes(data)
	if err != nil {
		return cid.Undef, err
	}

	s.data.Store(id.KeyString(), data)
	return id, nil
}

// Get retrieves and decodes a node by CID.
func (s *Store) Get(ctx context.Context, id cid.Cid) (datamodel.Node, error) {
	val, ok := s.data.Load(id.KeyString())
	if !ok {
		return nil, blockstore.ErrBlockNotFound
	}
	return blockstore.Decode(val.([]byte))
}

// Close releases any resources. The in-memory store holds none.
func (s *Store) Close() error {
	return nil
}
