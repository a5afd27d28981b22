// Package blockstore defines the content-addressed block store capability
// the MST core is built on: put a node, get back its CID; get a CID, get
// back its decoded node. The store doesn't know what an MST is — it stores
// and retrieves IPLD nodes keyed by their own content address.
package blockstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/ferozsalam/atproto/multihash"
)

// BlockStore is the capability the MST core consumes to persist and load
// nodes. Put is idempotent: encoding equal nodes always yields equal CIDs.
// Get fails with ErrBlockNotFound if the CID is absent.
type BlockStore interface {
	Put(ctx context.Context, node datamodel.Node) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) (datamodel.Node, error)
	Close() error
}

// ErrBlockNotFound is returned by Get when the requested CID has no block.
var ErrBlockNotFound = fmt.Errorf("blockstore: block not found")

// Encode serializes an IPLD node to canonical DAG-CBOR bytes.
func Encode(node datamodel.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := dagcbor.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("blockstore: encode node: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses canonical DAG-CBOR bytes into an IPLD node.
func Decode(data []byte) (datamodel.Node, error) {
	builder := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(builder, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("blockstore: decode node: %w", err)
	}
	return builder.Build(), nil
}

// CIDForBytes computes the CID that canonical DAG-CBOR bytes would be
// stored under. Backends call this after Encode to make Put idempotent.
func CIDForBytes(data []byte) (cid.Cid, error) {
	return multihash.SumCID(data)
}
