// Package nodecache wraps a blockstore.BlockStore with a read-through LRU
// cache of decoded nodes, avoiding repeat trips to the backing store for
// nodes revisited within or across MST operations (adapted from the
// teacher's IndexTermCache, which served the same purpose for parsed
// transaction terms).
package nodecache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"

	"github.com/ferozsalam/atproto/blockstore"
)

// Store decorates a blockstore.BlockStore with an in-process LRU cache.
// Put always writes through to the backing store, then caches the result;
// Get checks the cache before falling through to the backing store.
type Store struct {
	backing blockstore.BlockStore
	lru     *lru.Cache[string, datamodel.Node]
}

// New wraps backing with an LRU cache holding up to size decoded nodes.
func New(backing blockstore.BlockStore, size int) (*Store, error) {
	l, err := lru.New[string, datamodel.Node](size)
	if err != nil {
		return nil, err
	}

	return &Store{backing: backing, lru: l}, nil
}

// Put writes node through to the backing store and caches the decoded
// value under the CID the backing store assigned it.
func (s *Store) Put(ctx context.Context, node datamodel.Node) (cid.Cid, error) {
	id, err := s.backing.Put(ctx, node)
	if err != nil {
		return cid.Undef, err
	}

	s.lru.Add(id.KeyString(), node)
	return id, nil
}

// Get returns the cached node for id if present, otherwise loads it from
// the backing store and caches it before returning.
func (s *Store) Get(ctx context.Context, id cid.Cid) (datamodel.Node, error) {
	if node, ok := s.lru.Get(id.KeyString()); ok {
		return node, nil
	}

	node, err := s.backing.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.lru.Add(id.KeyString(), node)
	return node, nil
}

// Close closes the backing store. The cache itself holds no resources.
func (s *Store) Close() error {
	return s.backing.Close()
}

// Purge removes all cached entries without touching the backing store.
func (s *Store) Purge() {
	s.lru.Purge()
}
