package mst

import (
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

func fakeCID(t *testing.T, s string) cid.Cid {
	t.Helper()
	sum, err := mh.Sum([]byte(s), mh.SHA2_256, -1)
	if err != nil {
		t.Fatalf("mh.Sum: %v", err)
	}
	return cid.NewCidV1(0x71, sum)
}

func TestNodeIPLDRoundTrip(t *testing.T) {
	n := &Node{Entries: []Entry{
		PointerEntry(fakeCID(t, "left")),
		LeafEntry("a", fakeCID(t, "a-value")),
		LeafEntry("b", fakeCID(t, "b-value")),
		PointerEntry(fakeCID(t, "right")),
	}}

	dm, err := n.toIPLD()
	if err != nil {
		t.Fatalf("toIPLD: %v", err)
	}

	decoded, err := nodeFromIPLD(dm)
	if err != nil {
		t.Fatalf("nodeFromIPLD: %v", err)
	}

	if len(decoded.Entries) != len(n.Entries) {
		t.Fatalf("got %d entries, want %d", len(decoded.Entries), len(n.Entries))
	}
	for i, e := range n.Entries {
		got := decoded.Entries[i]
		if got.Leaf != e.Leaf {
			t.Errorf("entry %d: Leaf = %v, want %v", i, got.Leaf, e.Leaf)
		}
		if e.Leaf {
			if got.Key != e.Key || !got.Value.Equals(e.Value) {
				t.Errorf("entry %d: got (%q, %s), want (%q, %s)", i, got.Key, got.Value, e.Key, e.Value)
			}
		} else if !got.SubtreePointer.Equals(e.SubtreePointer) {
			t.Errorf("entry %d: pointer = %s, want %s", i, got.SubtreePointer, e.SubtreePointer)
		}
	}
}

func TestFirstLeafKeySkipsPointers(t *testing.T) {
	n := &Node{Entries: []Entry{
		PointerEntry(fakeCID(t, "x")),
		LeafEntry("only-leaf", fakeCID(t, "v")),
	}}

	key, ok := n.firstLeafKey()
	if !ok || key != "only-leaf" {
		t.Errorf("firstLeafKey() = %q, %v, want %q, true", key, ok, "only-leaf")
	}
}

func TestFirstLeafKeyEmptyNode(t *testing.T) {
	n := &Node{}
	if _, ok := n.firstLeafKey(); ok {
		t.Error("firstLeafKey() on empty node: ok = true, want false")
	}
}

func TestNodeFromIPLDAcceptsEmptyList(t *testing.T) {
	dm, err := (&Node{}).toIPLD()
	if err != nil {
		t.Fatalf("toIPLD: %v", err)
	}
	if dm.Kind().String() != "list" {
		t.Fatalf("empty node did not encode to a list: %s", dm.Kind())
	}

	if _, err := nodeFromIPLD(dm); err != nil {
		t.Errorf("nodeFromIPLD(empty list): %v", err)
	}
}
