// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

// Table divides a single key-value engine into disjoint key spaces by
// prefixing keys with a single byte.
type Table byte

const (
	// SubstateTable is the table space of the live substate database.
	SubstateTable Table = 'S'
	// MerkleNodeTable is the table space of state tree nodes keyed by node key.
	MerkleNodeTable Table = 'N'
	// StalePartTable is the table space of stale tree parts keyed by version.
	StalePartTable Table = 'P'
	// MetaTable is the table space of singleton metadata records.
	MetaTable Table = 'M'
)

// Key converts the given key into a key of this table space.
func (t Table) Key(key []byte) []byte {
	res := make([]byte, len(key)+1)
	res[0] = byte(t)
	copy(res[1:], key)
	return res
}

// Range returns the key range [start, limit) covering all keys of this table.
func (t Table) Range() (start, limit []byte) {
	return []byte{byte(t)}, []byte{byte(t) + 1}
}

// PrefixRange returns the key range [start, limit) covering all keys of this
// table starting with the given prefix.
func (t Table) PrefixRange(prefix []byte) (start, limit []byte) {
	start = t.Key(prefix)
	return start, UpperBound(start)
}

// UpperBound returns the smallest key greater than all keys starting with the
// given prefix. A nil result denotes that no such key exists, which only
// happens for prefixes consisting of 0xff bytes only.
func UpperBound(prefix []byte) (limit []byte) {
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c == 0xff {
			continue
		}
		limit = make([]byte, i+1)
		copy(limit, prefix)
		limit[i] = c + 1
		break
	}
	return limit
}
