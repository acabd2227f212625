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
	"bytes"
	"cmp"
	"encoding/hex"
	"fmt"
)

// NodeIdLength is the number of bytes of a NodeId.
const NodeIdLength = 30

// PartitionPrefixLength is the number of bytes of the physical key prefix
// shared by all substates of a single partition.
const PartitionPrefixLength = NodeIdLength + 1

// NodeId identifies a logical object (an account, a resource, a component, ...)
// in the ledger state.
type NodeId [NodeIdLength]byte

// PartitionId identifies a named sub-collection of substates within an object
// (fields, a map collection, an index, ...).
type PartitionId uint8

// SubstateKey identifies an entry within a partition. It is an opaque byte
// string, ordered bytewise. A string is used to make keys comparable and thus
// usable as map keys.
type SubstateKey string

// Version is the number of commits applied to a state. Version 0 denotes the
// empty state before the first commit.
type Version uint64

// PartitionKey addresses a single partition of a single object.
type PartitionKey struct {
	Node      NodeId
	Partition PartitionId
}

// SubstateAddress is the full address of a substate. Addresses are totally
// ordered lexicographically by (Node, Partition, Key).
type SubstateAddress struct {
	Node      NodeId
	Partition PartitionId
	Key       SubstateKey
}

// NewAddress is a convenience constructor for substate addresses.
func NewAddress(node NodeId, partition PartitionId, key SubstateKey) SubstateAddress {
	return SubstateAddress{Node: node, Partition: partition, Key: key}
}

func (n NodeId) String() string {
	return hex.EncodeToString(n[:])
}

// Compare returns -1, 0 or +1 depending on whether n is less, equal or
// greater than o in bytewise order.
func (n NodeId) Compare(o NodeId) int {
	return bytes.Compare(n[:], o[:])
}

// Bytes returns the encoded form of the key.
func (k SubstateKey) Bytes() []byte {
	return []byte(k)
}

func (k SubstateKey) String() string {
	return hex.EncodeToString([]byte(k))
}

// Compare returns -1, 0 or +1 depending on whether p orders before, equal to,
// or after o.
func (p PartitionKey) Compare(o PartitionKey) int {
	if res := p.Node.Compare(o.Node); res != 0 {
		return res
	}
	return cmp.Compare(p.Partition, o.Partition)
}

// Prefix returns the physical key prefix shared by all substates of this
// partition.
func (p PartitionKey) Prefix() []byte {
	res := make([]byte, PartitionPrefixLength)
	copy(res, p.Node[:])
	res[NodeIdLength] = byte(p.Partition)
	return res
}

func (p PartitionKey) String() string {
	return fmt.Sprintf("%v:%d", p.Node, p.Partition)
}

// PartitionKey returns the key of the partition containing the addressed substate.
func (a SubstateAddress) PartitionKey() PartitionKey {
	return PartitionKey{Node: a.Node, Partition: a.Partition}
}

// Compare returns -1, 0 or +1 depending on whether a orders before, equal to,
// or after o.
func (a SubstateAddress) Compare(o SubstateAddress) int {
	if res := a.PartitionKey().Compare(o.PartitionKey()); res != 0 {
		return res
	}
	return cmp.Compare(a.Key, o.Key)
}

// Encode produces the physical key of the addressed substate, which is the
// concatenation Node || Partition || Key. The byte order of encoded keys equals
// the logical order of addresses.
func (a SubstateAddress) Encode() []byte {
	res := make([]byte, PartitionPrefixLength+len(a.Key))
	copy(res, a.Node[:])
	res[NodeIdLength] = byte(a.Partition)
	copy(res[PartitionPrefixLength:], a.Key)
	return res
}

// DecodeAddress is the inverse of SubstateAddress.Encode.
func DecodeAddress(data []byte) (SubstateAddress, error) {
	var res SubstateAddress
	if len(data) < PartitionPrefixLength {
		return res, fmt.Errorf("invalid substate address length %d, must be at least %d", len(data), PartitionPrefixLength)
	}
	copy(res.Node[:], data)
	res.Partition = PartitionId(data[NodeIdLength])
	res.Key = SubstateKey(data[PartitionPrefixLength:])
	return res, nil
}

func (a SubstateAddress) String() string {
	return fmt.Sprintf("%v:%d:%v", a.Node, a.Partition, a.Key)
}
