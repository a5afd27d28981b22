package multihash

import (
	"testing"

	mh "github.com/multiformats/go-multihash"
)

func TestLeadingZerosKnownValues(t *testing.T) {
	cases := []struct {
		key   string
		layer int
	}{
		{"com.example.record/3jqfcqzm3fo2j", 0},
		{"com.example.record/3jqfcqzm3fp2j", 0},
		{"key-00000", 1},
		{"key-00001", 0},
		{"key-00022", 1},
		{"key-00139", 2},
		{"key-01124", 2},
	}

	for _, c := range cases {
		if got := LeadingZeros(c.key); got != c.layer {
			t.Errorf("LeadingZeros(%q) = %d, want %d", c.key, got, c.layer)
		}
	}
}

func TestLeadingZerosDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if LeadingZeros("stable-key") != LeadingZeros("stable-key") {
			t.Fatal("LeadingZeros is not deterministic")
		}
	}
}

func TestSumCID(t *testing.T) {
	data := []byte("some canonical node bytes")

	c, err := SumCID(data)
	if err != nil {
		t.Fatalf("SumCID failed: %v", err)
	}

	if c.Prefix().Codec != CBORCodec {
		t.Errorf("expected codec 0x%x, got 0x%x", CBORCodec, c.Prefix().Codec)
	}

	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		t.Fatalf("failed to decode multihash: %v", err)
	}
	if decoded.Code != mh.SHA2_256 {
		t.Errorf("expected sha2-256, got 0x%x", decoded.Code)
	}

	c2, err := SumCID(data)
	if err != nil {
		t.Fatalf("SumCID failed: %v", err)
	}
	if !c.Equals(c2) {
		t.Error("SumCID is not deterministic for equal inputs")
	}
}

func TestSumCIDDiffersOnDiffData(t *testing.T) {
	a, _ := SumCID([]byte("a"))
	b, _ := SumCID([]byte("b"))
	if a.Equals(b) {
		t.Error("different data produced the same CID")
	}
}
