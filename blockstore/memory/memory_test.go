package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/fluent"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/ferozsalam/atproto/blockstore"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	n := fluent.MustBuildMap(basicnode.Prototype.Map, 1, func(ma fluent.MapAssembler) {
		ma.AssembleEntry("k").AssignString("v")
	})

	id, err := s.Put(ctx, n)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	v, err := got.LookupByString("k")
	if err != nil {
		t.Fatalf("LookupByString: %v", err)
	}
	s2, err := v.AsString()
	if err != nil || s2 != "v" {
		t.Errorf("got %q, %v, want %q, nil", s2, err, "v")
	}
}

func TestGetMissingReturnsErrBlockNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, cid.Undef)
	if !errors.Is(err, blockstore.ErrBlockNotFound) {
		t.Errorf("err = %v, want ErrBlockNotFound", err)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	n := fluent.MustBuildMap(basicnode.Prototype.Map, 1, func(ma fluent.MapAssembler) {
		ma.AssembleEntry("k").AssignString("v")
	})

	a, err := s.Put(ctx, n)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := s.Put(ctx, n)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if !a.Equals(b) {
		t.Errorf("Put of equal nodes gave different CIDs: %s vs %s", a, b)
	}
}
