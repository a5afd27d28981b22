// Package multihash wraps the hash capability the MST core depends on:
// deriving a key's natural layer from its sha256 digest, and wrapping
// canonical node bytes in a content-addressed CID.
package multihash

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// CBORCodec is the IPLD codec tag for DAG-CBOR, used when minting CIDs for
// encoded MST nodes.
const CBORCodec = 0x71

var b32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// LeadingZeros computes L(k): the number of leading zero nibbles (i.e.
// leading 'a' characters) in the lowercase, unpadded RFC 4648 base32
// encoding of sha256(key). This is the sole source of a key's natural
// layer and must be pure and stable across implementations.
func LeadingZeros(key string) int {
	sum := sha256.Sum256([]byte(key))
	encoded := strings.ToLower(b32NoPad.EncodeToString(sum[:]))

	var n int
	for n < len(encoded) && encoded[n] == 'a' {
		n++
	}
	return n
}

// SumCID mints a CID over data using a sha256 multihash under the DAG-CBOR
// codec. Two equal byte slices always yield equal CIDs.
func SumCID(data []byte) (cid.Cid, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(CBORCodec, sum), nil
}
