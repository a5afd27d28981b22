package nodecache

import (
	"context"
	"testing"

	"github.com/ipld/go-ipld-prime/fluent"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/ferozsalam/atproto/blockstore/memory"
)

func TestGetReadsThroughToBackingAfterPurge(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	s, err := New(backing, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := fluent.MustBuildMap(basicnode.Prototype.Map, 1, func(ma fluent.MapAssembler) {
		ma.AssembleEntry("k").AssignString("v")
	})

	id, err := s.Put(ctx, n)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.Purge() // drop the cache entry Put populated; backing store still has it
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after purge: %v", err)
	}
	v, _ := got.LookupByString("k")
	str, _ := v.AsString()
	if str != "v" {
		t.Errorf("got %q, want %q", str, "v")
	}
}

func TestPurgeDoesNotAffectBackingStore(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	s, err := New(backing, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := fluent.MustBuildMap(basicnode.Prototype.Map, 1, func(ma fluent.MapAssembler) {
		ma.AssembleEntry("k").AssignString("v")
	})
	id, err := s.Put(ctx, n)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.Purge()

	if _, err := backing.Get(ctx, id); err != nil {
		t.Errorf("backing.Get after cache purge: %v", err)
	}
}
