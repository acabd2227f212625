// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a Hash in bytes.
const HashSize = 32

// Hash is a 32-byte BLAKE2b digest.
type Hash [HashSize]byte

// PlaceholderHash is the reserved root hash of an empty tree. It is not the
// hash of any actual content, so an empty state can be told apart from any
// non-empty one.
var PlaceholderHash = func() Hash {
	var res Hash
	copy(res[:], "SPARSE_MERKLE_PLACEHOLDER_HASH")
	return res
}()

// HashOf computes the BLAKE2b-256 digest of the given data.
func HashOf(data []byte) Hash {
	return blake2b.Sum256(data)
}

// HashOfParts computes the digest of the concatenation of the given parts
// without materializing the concatenation.
func HashOfParts(parts ...[]byte) Hash {
	hasher, _ := blake2b.New256(nil) // only fails for oversized keys
	for _, part := range parts {
		hasher.Write(part)
	}
	var res Hash
	hasher.Sum(res[:0])
	return res
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
