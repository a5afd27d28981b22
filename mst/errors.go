package mst

import "errors"

// Failure kinds surfaced by the core. None are recovered internally; the
// caller still holds the previous root CID on any failure and can retry or
// abort.
var (
	// ErrKeyExists is returned by Add when the key already has a leaf at
	// the layer it naturally belongs to.
	ErrKeyExists = errors.New("mst: key already exists")

	// ErrKeyNotFound is returned by Edit when the key is absent.
	ErrKeyNotFound = errors.New("mst: key not found")

	// ErrLayerUnknown is returned by Load when a node has no leaves and no
	// layer hint was supplied, so its layer cannot be inferred.
	ErrLayerUnknown = errors.New("mst: layer unknown for node with no leaves")

	// ErrDecodeError is returned when a stored block doesn't decode to a
	// well-formed Node.
	ErrDecodeError = errors.New("mst: decode error")
)
