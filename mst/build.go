package mst

import (
	"context"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/ferozsalam/atproto/blockstore"
	"github.com/ferozsalam/atproto/multihash"
)

// DataEntry is one (key, value) pair fed to BuildFromEntries.
type DataEntry struct {
	Key   string
	Value cid.Cid
}

// BuildFromEntries persists a tree containing exactly the given entries in
// a single bottom-up pass, rather than by repeated Add calls. Entries must
// have distinct keys; duplicates fail with ErrKeyExists. This mirrors the
// teacher's group-then-build construction (grouping raw rows by a derived
// bucket before assembling each bucket's node directly) applied to the
// layer each key is derived to belong at, instead of incremental
// insertion, and is substantially cheaper for loading a large, already
// known key set.
func BuildFromEntries(ctx context.Context, bs blockstore.BlockStore, entries []DataEntry) (*MST, error) {
	if len(entries) == 0 {
		return Create(ctx, bs, 0)
	}

	sorted := make([]DataEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Key == sorted[i-1].Key {
			return nil, fmt.Errorf("%w: %q", ErrKeyExists, sorted[i].Key)
		}
	}

	layers := make([]int, len(sorted))
	topLayer := 0
	for i, e := range sorted {
		layers[i] = multihash.LeadingZeros(e.Key)
		if layers[i] > topLayer {
			topLayer = layers[i]
		}
	}

	// buildRange persists a node at exactly layer `ceiling` covering
	// sorted[lo:hi], returning its CID (cid.Undef if the range is empty).
	// Keys in the range with layer == ceiling become this node's leaves and
	// split it into at-most-len+1 child ranges, each built recursively one
	// layer down. If no key in the range belongs at ceiling, the node is a
	// singleton pointer wrapping the next layer down, so the layer-to-CID
	// correspondence matches what incremental Add calls would produce.
	var buildRange func(lo, hi, ceiling int) (cid.Cid, error)
	buildRange = func(lo, hi, ceiling int) (cid.Cid, error) {
		if lo >= hi {
			return cid.Undef, nil
		}
		if ceiling < 0 {
			return cid.Undef, fmt.Errorf("mst: key %q has no valid layer", sorted[lo].Key)
		}

		var atCeiling []int
		for i := lo; i < hi; i++ {
			if layers[i] == ceiling {
				atCeiling = append(atCeiling, i)
			}
		}

		if len(atCeiling) == 0 {
			// No key in this range belongs at this exact layer: wrap the
			// next layer down in a singleton pointer node, mirroring the
			// wrapper chain addBelow/addAbove build one layer at a time.
			childCID, err := buildRange(lo, hi, ceiling-1)
			if err != nil {
				return cid.Undef, err
			}
			h, err := FromData(ctx, bs, &Node{Entries: []Entry{PointerEntry(childCID)}}, ceiling)
			if err != nil {
				return cid.Undef, err
			}
			return h.cid, nil
		}

		entriesOut := make([]Entry, 0, 2*len(atCeiling)+1)
		segStart := lo
		for _, idx := range atCeiling {
			childCID, err := buildRange(segStart, idx, ceiling-1)
			if err != nil {
				return cid.Undef, err
			}
			if childCID.Defined() {
				entriesOut = append(entriesOut, PointerEntry(childCID))
			}
			entriesOut = append(entriesOut, LeafEntry(sorted[idx].Key, sorted[idx].Value))
			segStart = idx + 1
		}
		tailCID, err := buildRange(segStart, hi, ceiling-1)
		if err != nil {
			return cid.Undef, err
		}
		if tailCID.Defined() {
			entriesOut = append(entriesOut, PointerEntry(tailCID))
		}

		h, err := FromData(ctx, bs, &Node{Entries: entriesOut}, ceiling)
		if err != nil {
			return cid.Undef, err
		}
		return h.cid, nil
	}

	rootCID, err := buildRange(0, len(sorted), topLayer)
	if err != nil {
		return nil, err
	}

	return Load(ctx, bs, rootCID, topLayer)
}
