package mst

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Entry is the tagged union a Node's sequence is built from: either a leaf
// (key, value) pair or a pointer to a subtree one layer below.
type Entry struct {
	// Leaf is true when this entry is a (Key, Value) leaf; false when it is
	// a SubtreePointer to a child node.
	Leaf bool

	Key   string  // set iff Leaf
	Value cid.Cid // set iff Leaf

	SubtreePointer cid.Cid // set iff !Leaf
}

// LeafEntry builds a leaf Entry.
func LeafEntry(key string, value cid.Cid) Entry {
	return Entry{Leaf: true, Key: key, Value: value}
}

// PointerEntry builds a subtree-pointer Entry.
func PointerEntry(child cid.Cid) Entry {
	return Entry{Leaf: false, SubtreePointer: child}
}

// Node is an ordered sequence of Entries, the unit persisted as a single
// block. Leaves within a Node appear in strictly ascending key order;
// adjacent subtree pointers are never both present (spec invariant #2).
type Node struct {
	Entries []Entry
}

// firstLeafKey returns the key of the first leaf entry in the node, used to
// infer a node's layer when none is supplied to Load.
func (n *Node) firstLeafKey() (string, bool) {
	for _, e := range n.Entries {
		if e.Leaf {
			return e.Key, true
		}
	}
	return "", false
}

// toIPLD converts a Node into the IPLD representation encoded to the block
// store: a list where each item is either a bare CID link (subtree pointer)
// or a 2-element list of [key string, value link] (leaf).
func (n *Node) toIPLD() (datamodel.Node, error) {
	builder := basicnode.Prototype.List.NewBuilder()
	la, err := builder.BeginList(int64(len(n.Entries)))
	if err != nil {
		return nil, err
	}

	for _, e := range n.Entries {
		if e.Leaf {
			leafBuilder := basicnode.Prototype.List.NewBuilder()
			leafAsm, err := leafBuilder.BeginList(2)
			if err != nil {
				return nil, err
			}
			if err := leafAsm.AssembleValue().AssignString(e.Key); err != nil {
				return nil, err
			}
			if err := leafAsm.AssembleValue().AssignLink(cidlink.Link{Cid: e.Value}); err != nil {
				return nil, err
			}
			if err := leafAsm.Finish(); err != nil {
				return nil, err
			}
			if err := la.AssembleValue().AssignNode(leafBuilder.Build()); err != nil {
				return nil, err
			}
		} else {
			if err := la.AssembleValue().AssignLink(cidlink.Link{Cid: e.SubtreePointer}); err != nil {
				return nil, err
			}
		}
	}

	if err := la.Finish(); err != nil {
		return nil, err
	}

	return builder.Build(), nil
}

// nodeFromIPLD decodes a Node from its IPLD list representation.
func nodeFromIPLD(dm datamodel.Node) (*Node, error) {
	if dm.Kind() != datamodel.Kind_List {
		return nil, fmt.Errorf("%w: expected list, got %s", ErrDecodeError, dm.Kind())
	}

	n := &Node{Entries: make([]Entry, 0, dm.Length())}

	it := dm.ListIterator()
	for !it.Done() {
		_, item, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeError, err)
		}

		switch item.Kind() {
		case datamodel.Kind_Link:
			link, err := item.AsLink()
			if err != nil {
				return nil, fmt.Errorf("%w: invalid subtree link: %v", ErrDecodeError, err)
			}
			cl, ok := link.(cidlink.Link)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected link type", ErrDecodeError)
			}
			n.Entries = append(n.Entries, PointerEntry(cl.Cid))

		case datamodel.Kind_List:
			if item.Length() != 2 {
				return nil, fmt.Errorf("%w: leaf entry must have 2 elements, got %d", ErrDecodeError, item.Length())
			}
			keyNode, err := item.LookupByIndex(0)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecodeError, err)
			}
			key, err := keyNode.AsString()
			if err != nil {
				return nil, fmt.Errorf("%w: invalid leaf key: %v", ErrDecodeError, err)
			}

			valNode, err := item.LookupByIndex(1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecodeError, err)
			}
			link, err := valNode.AsLink()
			if err != nil {
				return nil, fmt.Errorf("%w: invalid leaf value: %v", ErrDecodeError, err)
			}
			cl, ok := link.(cidlink.Link)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected link type", ErrDecodeError)
			}

			n.Entries = append(n.Entries, LeafEntry(key, cl.Cid))

		default:
			return nil, fmt.Errorf("%w: unexpected entry kind %s", ErrDecodeError, item.Kind())
		}
	}

	return n, nil
}
