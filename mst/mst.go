// Package mst implements an immutable, content-addressed Merkle Search
// Tree: a key -> CID index whose shape is fully determined by its
// contents, because each key's depth is derived from a hash of the key
// rather than from insertion order.
//
// The tree is a thin layer over a blockstore.BlockStore capability: every
// mutating operation re-persists the nodes on the path from the changed
// leaf to the root and returns the new root CID. There is no in-place
// mutation of persisted blocks and no deletion (see spec Non-goals).
package mst

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ferozsalam/atproto/blockstore"
	"github.com/ferozsalam/atproto/multihash"
)

// MST is an in-memory handle onto a loaded node: the block store it was
// loaded from, the node's persisted CID, its decoded contents, and its
// layer. A handle is not safe for concurrent mutation; independent readers
// of the same CID should each construct their own handle via Load.
type MST struct {
	bs    blockstore.BlockStore
	cid   cid.Cid
	node  *Node
	layer int
}

// Layer returns the handle's layer.
func (t *MST) Layer() int { return t.layer }

// CID returns the handle's current persisted root CID.
func (t *MST) CID() cid.Cid { return t.cid }

// Create returns a handle onto a freshly persisted empty node at layer.
func Create(ctx context.Context, bs blockstore.BlockStore, layer int) (*MST, error) {
	return FromData(ctx, bs, &Node{}, layer)
}

// Load fetches the node stored at id and returns a handle onto it. If
// layerHint is supplied, it is trusted as the node's layer; otherwise the
// layer is inferred from the first leaf encountered in the node. Loading a
// node with no leaves and no layer hint fails with ErrLayerUnknown.
func Load(ctx context.Context, bs blockstore.BlockStore, id cid.Cid, layerHint ...int) (*MST, error) {
	dm, err := bs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	node, err := nodeFromIPLD(dm)
	if err != nil {
		return nil, err
	}

	var layer int
	if len(layerHint) > 0 {
		layer = layerHint[0]
	} else if key, ok := node.firstLeafKey(); ok {
		layer = multihash.LeadingZeros(key)
	} else {
		return nil, fmt.Errorf("%w: node %s has no leaves", ErrLayerUnknown, id)
	}

	return &MST{bs: bs, cid: id, node: node, layer: layer}, nil
}

// FromData persists node and returns a handle at the given layer.
func FromData(ctx context.Context, bs blockstore.BlockStore, node *Node, layer int) (*MST, error) {
	t := &MST{bs: bs, node: node, layer: layer}
	if _, err := t.put(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// put serializes t.node, replaces t.cid with the store's content address
// for it, and returns that CID.
func (t *MST) put(ctx context.Context) (cid.Cid, error) {
	dm, err := t.node.toIPLD()
	if err != nil {
		return cid.Undef, fmt.Errorf("mst: encode node: %w", err)
	}

	id, err := t.bs.Put(ctx, dm)
	if err != nil {
		return cid.Undef, fmt.Errorf("mst: put node: %w", err)
	}

	t.cid = id
	return id, nil
}

// FindGtOrEqualLeafIndex returns the index of the first leaf entry whose
// key is >= key, or len(n.Entries) if none exists. Subtree pointers are
// skipped by the comparison but still occupy positions in the sequence.
func (n *Node) FindGtOrEqualLeafIndex(key string) int {
	for i, e := range n.Entries {
		if e.Leaf && e.Key >= key {
			return i
		}
	}
	return len(n.Entries)
}

// Get returns the value stored under key, or ok=false if key is absent.
func (t *MST) Get(ctx context.Context, key string) (value cid.Cid, ok bool, err error) {
	i := t.node.FindGtOrEqualLeafIndex(key)

	if i < len(t.node.Entries) && t.node.Entries[i].Leaf && t.node.Entries[i].Key == key {
		return t.node.Entries[i].Value, true, nil
	}

	if i > 0 && !t.node.Entries[i-1].Leaf {
		child, err := Load(ctx, t.bs, t.node.Entries[i-1].SubtreePointer, t.layer-1)
		if err != nil {
			return cid.Undef, false, err
		}
		return child.Get(ctx, key)
	}

	return cid.Undef, false, nil
}

// Add inserts (key, value) and returns the new root CID. Fails with
// ErrKeyExists if key is already present at the layer it naturally
// belongs to.
func (t *MST) Add(ctx context.Context, key string, value cid.Cid) (cid.Cid, error) {
	kz := multihash.LeadingZeros(key)

	switch {
	case kz == t.layer:
		return t.addAtLayer(ctx, key, value)
	case kz < t.layer:
		return t.addBelow(ctx, key, value)
	default:
		return t.addAbove(ctx, key, value, kz)
	}
}

// addAtLayer handles Add case A: the key belongs at this node's layer.
func (t *MST) addAtLayer(ctx context.Context, key string, value cid.Cid) (cid.Cid, error) {
	i := t.node.FindGtOrEqualLeafIndex(key)

	if i < len(t.node.Entries) && t.node.Entries[i].Leaf && t.node.Entries[i].Key == key {
		return cid.Undef, fmt.Errorf("%w: %q", ErrKeyExists, key)
	}

	if i == 0 || t.node.Entries[i-1].Leaf {
		entries := insertAt(t.node.Entries, i, LeafEntry(key, value))
		t.node = &Node{Entries: entries}
		return t.put(ctx)
	}

	// node[i-1] is a subtree pointer that must be split around key.
	p := t.node.Entries[i-1]
	child, err := Load(ctx, t.bs, p.SubtreePointer, t.layer-1)
	if err != nil {
		return cid.Undef, err
	}

	leftCID, rightCID, err := child.SplitAround(ctx, key)
	if err != nil {
		return cid.Undef, err
	}

	entries := make([]Entry, 0, len(t.node.Entries)+2)
	entries = append(entries, t.node.Entries[:i-1]...)
	if leftCID.Defined() {
		entries = append(entries, PointerEntry(leftCID))
	}
	entries = append(entries, LeafEntry(key, value))
	if rightCID.Defined() {
		entries = append(entries, PointerEntry(rightCID))
	}
	entries = append(entries, t.node.Entries[i:]...)

	t.node = &Node{Entries: entries}
	return t.put(ctx)
}

// addBelow handles Add case B: the key's natural layer is below this node.
func (t *MST) addBelow(ctx context.Context, key string, value cid.Cid) (cid.Cid, error) {
	i := t.node.FindGtOrEqualLeafIndex(key)

	if i > 0 && !t.node.Entries[i-1].Leaf {
		p := t.node.Entries[i-1]
		child, err := Load(ctx, t.bs, p.SubtreePointer, t.layer-1)
		if err != nil {
			return cid.Undef, err
		}
		newChildCID, err := child.Add(ctx, key, value)
		if err != nil {
			return cid.Undef, err
		}

		entries := append([]Entry(nil), t.node.Entries...)
		entries[i-1] = PointerEntry(newChildCID)
		t.node = &Node{Entries: entries}
		return t.put(ctx)
	}

	child, err := Create(ctx, t.bs, t.layer-1)
	if err != nil {
		return cid.Undef, err
	}
	newChildCID, err := child.Add(ctx, key, value)
	if err != nil {
		return cid.Undef, err
	}

	entries := insertAt(t.node.Entries, i, PointerEntry(newChildCID))
	t.node = &Node{Entries: entries}
	return t.put(ctx)
}

// addAbove handles Add case C: the key's natural layer is above this
// node's layer, so the existing tree must be pushed down beneath it.
func (t *MST) addAbove(ctx context.Context, key string, value cid.Cid, kz int) (cid.Cid, error) {
	leftCID, rightCID, err := t.SplitAround(ctx, key)
	if err != nil {
		return cid.Undef, err
	}

	for l := t.layer + 1; l < kz; l++ {
		if leftCID.Defined() {
			leftCID, err = wrapSingle(ctx, t.bs, leftCID, l)
			if err != nil {
				return cid.Undef, err
			}
		}
		if rightCID.Defined() {
			rightCID, err = wrapSingle(ctx, t.bs, rightCID, l)
			if err != nil {
				return cid.Undef, err
			}
		}
	}

	entries := make([]Entry, 0, 3)
	if leftCID.Defined() {
		entries = append(entries, PointerEntry(leftCID))
	}
	entries = append(entries, LeafEntry(key, value))
	if rightCID.Defined() {
		entries = append(entries, PointerEntry(rightCID))
	}

	t.node = &Node{Entries: entries}
	t.layer = kz
	return t.put(ctx)
}

// wrapSingle persists a single-entry node at layer containing a pointer to
// child, lifting child one layer up the wrapper chain.
func wrapSingle(ctx context.Context, bs blockstore.BlockStore, child cid.Cid, layer int) (cid.Cid, error) {
	h, err := FromData(ctx, bs, &Node{Entries: []Entry{PointerEntry(child)}}, layer)
	if err != nil {
		return cid.Undef, err
	}
	return h.cid, nil
}

// SplitAround partitions the tree into two persisted trees holding,
// respectively, all entries strictly less than key and all entries
// greater than or equal to key. Either side's CID is cid.Undef if that
// side is empty.
//
// Per the resolved Open Question (spec §9): when the split point falls
// inside a subtree pointer, that subtree is itself split and the pointer
// is replaced by its left half on the left side and its right half
// (prepended) on the right side -- not the original, undivided pointer.
func (t *MST) SplitAround(ctx context.Context, key string) (left, right cid.Cid, err error) {
	i := t.node.FindGtOrEqualLeafIndex(key)

	leftEntries := append([]Entry(nil), t.node.Entries[:i]...)
	rightEntries := append([]Entry(nil), t.node.Entries[i:]...)

	// The split point may fall inside the subtree a trailing left-hand
	// pointer refers to, even when this node's own entries place that
	// pointer wholly on the left. Always check, rather than only when the
	// right half happens to be empty at this level.
	if len(leftEntries) > 0 {
		prev := leftEntries[len(leftEntries)-1]
		if !prev.Leaf {
			child, err := Load(ctx, t.bs, prev.SubtreePointer, t.layer-1)
			if err != nil {
				return cid.Undef, cid.Undef, err
			}

			pl, pr, err := child.SplitAround(ctx, key)
			if err != nil {
				return cid.Undef, cid.Undef, err
			}

			leftEntries = leftEntries[:len(leftEntries)-1]
			if pl.Defined() {
				leftEntries = append(leftEntries, PointerEntry(pl))
			}
			if pr.Defined() {
				rightEntries = append([]Entry{PointerEntry(pr)}, rightEntries...)
			}
		}
	}

	left, err = t.persistHalf(ctx, leftEntries)
	if err != nil {
		return cid.Undef, cid.Undef, err
	}
	right, err = t.persistHalf(ctx, rightEntries)
	if err != nil {
		return cid.Undef, cid.Undef, err
	}

	return left, right, nil
}

// persistHalf persists entries as a node at t's layer, or returns
// cid.Undef without writing anything if entries is empty.
func (t *MST) persistHalf(ctx context.Context, entries []Entry) (cid.Cid, error) {
	if len(entries) == 0 {
		return cid.Undef, nil
	}
	h, err := FromData(ctx, t.bs, &Node{Entries: entries}, t.layer)
	if err != nil {
		return cid.Undef, err
	}
	return h.cid, nil
}

// Edit overwrites the value of an existing key and returns the new root
// CID. Fails with ErrKeyNotFound if key is absent.
func (t *MST) Edit(ctx context.Context, key string, value cid.Cid) (cid.Cid, error) {
	i := t.node.FindGtOrEqualLeafIndex(key)

	if i < len(t.node.Entries) && t.node.Entries[i].Leaf && t.node.Entries[i].Key == key {
		entries := append([]Entry(nil), t.node.Entries...)
		entries[i] = LeafEntry(key, value)
		t.node = &Node{Entries: entries}
		return t.put(ctx)
	}

	if i > 0 && !t.node.Entries[i-1].Leaf {
		p := t.node.Entries[i-1]
		child, err := Load(ctx, t.bs, p.SubtreePointer, t.layer-1)
		if err != nil {
			return cid.Undef, err
		}
		newChildCID, err := child.Edit(ctx, key, value)
		if err != nil {
			return cid.Undef, err
		}

		entries := append([]Entry(nil), t.node.Entries...)
		entries[i-1] = PointerEntry(newChildCID)
		t.node = &Node{Entries: entries}
		return t.put(ctx)
	}

	return cid.Undef, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// MergeIn merges other into t, with other's values winning key conflicts,
// and returns the new root CID. Both handles must be at the same layer.
func (t *MST) MergeIn(ctx context.Context, other *MST) (cid.Cid, error) {
	if t.layer != other.layer {
		return cid.Undef, fmt.Errorf("mst: mergeIn requires equal layers, got %d and %d", t.layer, other.layer)
	}

	self := t.node.Entries
	merged := make([]Entry, 0, len(self)+len(other.node.Entries))
	i := 0

	for _, entry := range other.node.Entries {
		if entry.Leaf {
			j := findGtOrEqualLeafIndexIn(self, entry.Key)
			merged = append(merged, self[i:j]...)

			if j < len(self) && self[j].Leaf && self[j].Key == entry.Key {
				merged = append(merged, entry) // other wins on conflict
				i = j + 1
			} else {
				merged = append(merged, entry)
				i = j
			}
			continue
		}

		// Subtree pointer entry from other.
		if i >= len(self) || self[i].Leaf {
			merged = append(merged, entry)
			continue
		}

		selfPtr := self[i]
		if selfPtr.SubtreePointer.Equals(entry.SubtreePointer) {
			merged = append(merged, selfPtr)
			i++
			continue
		}

		selfChild, err := Load(ctx, t.bs, selfPtr.SubtreePointer, t.layer-1)
		if err != nil {
			return cid.Undef, err
		}
		otherChild, err := Load(ctx, t.bs, entry.SubtreePointer, t.layer-1)
		if err != nil {
			return cid.Undef, err
		}

		mergedCID, err := selfChild.MergeIn(ctx, otherChild)
		if err != nil {
			return cid.Undef, err
		}

		merged = append(merged, PointerEntry(mergedCID))
		i++
	}

	merged = append(merged, self[i:]...)

	t.node = &Node{Entries: merged}
	return t.put(ctx)
}

// findGtOrEqualLeafIndexIn is FindGtOrEqualLeafIndex over a bare slice,
// used by MergeIn to search a snapshot of self's entries that is being
// built up into a new slice concurrently.
func findGtOrEqualLeafIndexIn(entries []Entry, key string) int {
	for i, e := range entries {
		if e.Leaf && e.Key >= key {
			return i
		}
	}
	return len(entries)
}

// insertAt returns a new slice with entry spliced in at index i.
func insertAt(entries []Entry, i int, entry Entry) []Entry {
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, entries[:i]...)
	out = append(out, entry)
	out = append(out, entries[i:]...)
	return out
}

// Visitor is called once per entry during Walk: level is the entry's
// layer, key is non-empty for a leaf and empty for a subtree pointer.
type Visitor func(level int, key string, isLeaf bool)

// Walk performs an in-order traversal of the tree, invoking visit once per
// entry. For a subtree pointer, visit is called with isLeaf=false before
// the subtree is recursed into; for a leaf, visit is called with
// isLeaf=true.
func (t *MST) Walk(ctx context.Context, visit Visitor) error {
	for _, e := range t.node.Entries {
		if e.Leaf {
			visit(t.layer, e.Key, true)
			continue
		}

		visit(t.layer, "", false)
		child, err := Load(ctx, t.bs, e.SubtreePointer, t.layer-1)
		if err != nil {
			return err
		}
		if err := child.Walk(ctx, visit); err != nil {
			return err
		}
	}
	return nil
}

// Structure is a nested, debuggable view of a tree's shape, suitable for
// golden-file tests.
type Structure struct {
	Layer   int              `json:"layer"`
	Entries []StructureEntry `json:"entries"`
}

// StructureEntry is either a leaf (Key set) or a subtree (Child set).
type StructureEntry struct {
	Key   string     `json:"key,omitempty"`
	Child *Structure `json:"child,omitempty"`
}

// Structure recursively renders the tree's shape.
func (t *MST) Structure(ctx context.Context) (*Structure, error) {
	s := &Structure{Layer: t.layer, Entries: make([]StructureEntry, 0, len(t.node.Entries))}

	for _, e := range t.node.Entries {
		if e.Leaf {
			s.Entries = append(s.Entries, StructureEntry{Key: e.Key})
			continue
		}

		child, err := Load(ctx, t.bs, e.SubtreePointer, t.layer-1)
		if err != nil {
			return nil, err
		}
		childStructure, err := child.Structure(ctx)
		if err != nil {
			return nil, err
		}
		s.Entries = append(s.Entries, StructureEntry{Child: childStructure})
	}

	return s, nil
}
