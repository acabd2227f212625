// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package statetree

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Fantom-foundation/substatedb/common"
)

// This file defines the node types of the state tree. Nodes are immutable
// once created and are stored under their NodeKey. Three kinds of nodes
// exist:
//  - NullNode     ... the empty tree
//  - LeafNode     ... a single entry of a tier; in the upper tiers its value
//                     hash is the root hash of the tier below
//  - InternalNode ... a branch with up to 16 children indexed by nibbles
//
// The tree contains three tiers. The entity tier is keyed by NodeIds, each
// entity leaf roots a partition tier keyed by PartitionIds, and each
// partition leaf roots a substate tier keyed by SubstateKeys. The position
// of a key within a tier is the nibble path of the hash of the key.

// Node is the common interface of all tree nodes.
type Node interface {
	// Hash computes the hash of this node. The hash does not depend on
	// the position of the node in the tree.
	Hash() common.Hash
	fmt.Stringer
}

// NullNode is the node representing an empty tree.
type NullNode struct{}

func (NullNode) Hash() common.Hash {
	return common.PlaceholderHash
}

func (NullNode) String() string {
	return "Null"
}

// LeafNode is a node holding a single entry of a tier.
type LeafNode struct {
	// KeySuffix is the part of the entry's key path not covered by the
	// position of the leaf.
	KeySuffix NibblePath
	// Payload is the logical key of the entry in its tier.
	Payload []byte
	// ValueHash is the hash of the substate value or, for upper tiers, the
	// root hash of the tier below.
	ValueHash common.Hash
	// LastHashChangeVersion is the version the value hash has last changed.
	// For upper tiers, it is the version of the root node of the tier below.
	LastHashChangeVersion common.Version
}

func (n *LeafNode) Hash() common.Hash {
	return hashLeaf(n.Payload, n.ValueHash)
}

func hashLeaf(payload []byte, value common.Hash) common.Hash {
	key := common.HashOf(payload)
	return common.HashOfParts([]byte{leafDomain}, key[:], value[:])
}

func (n *LeafNode) String() string {
	return fmt.Sprintf("Leaf{suffix: %v, payload: %x, value: %v, version: %d}", n.KeySuffix, n.Payload, n.ValueHash, n.LastHashChangeVersion)
}

// Child is a reference of an internal node to one of its children.
type Child struct {
	Nibble  Nibble
	Version common.Version
	Hash    common.Hash
	IsLeaf  bool
}

func (c Child) String() string {
	kind := "node"
	if c.IsLeaf {
		kind = "leaf"
	}
	return fmt.Sprintf("%v:%s@%d:%v", c.Nibble, kind, c.Version, c.Hash)
}

// InternalNode is a branch node of a tier. Children are ordered by nibble.
type InternalNode struct {
	Children []Child
}

// GetChild returns the child referenced at the given nibble, if present.
func (n *InternalNode) GetChild(step Nibble) (Child, bool) {
	for _, child := range n.Children {
		if child.Nibble == step {
			return child, true
		}
	}
	return Child{}, false
}

func (n *InternalNode) Hash() common.Hash {
	parts := make([][]byte, 0, 2*len(n.Children)+1)
	parts = append(parts, []byte{internalDomain})
	for _, child := range n.Children {
		hash := child.Hash
		parts = append(parts, []byte{byte(child.Nibble)}, hash[:])
	}
	return common.HashOfParts(parts...)
}

func (n *InternalNode) String() string {
	children := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		children = append(children, child.String())
	}
	return fmt.Sprintf("Internal{%s}", strings.Join(children, ", "))
}

const (
	leafDomain     = 0x00
	internalDomain = 0x01
)

const (
	nullNodeTag     = 0
	internalNodeTag = 1
	leafNodeTag     = 2
)

// EncodeNode produces the storage representation of the given node.
func EncodeNode(node Node) []byte {
	switch n := node.(type) {
	case NullNode:
		return []byte{nullNodeTag}
	case *InternalNode:
		res := make([]byte, 0, 2+len(n.Children)*(2+binary.MaxVarintLen64+common.HashSize))
		res = append(res, internalNodeTag, byte(len(n.Children)))
		for _, child := range n.Children {
			res = append(res, byte(child.Nibble))
			res = binary.AppendUvarint(res, uint64(child.Version))
			res = append(res, child.Hash[:]...)
			if child.IsLeaf {
				res = append(res, 1)
			} else {
				res = append(res, 0)
			}
		}
		return res
	case *LeafNode:
		packed := n.KeySuffix.Packed()
		res := make([]byte, 0, 1+3*binary.MaxVarintLen64+len(packed)+len(n.Payload)+common.HashSize)
		res = append(res, leafNodeTag)
		res = binary.AppendUvarint(res, uint64(n.KeySuffix.Length()))
		res = append(res, packed...)
		res = binary.AppendUvarint(res, uint64(len(n.Payload)))
		res = append(res, n.Payload...)
		res = append(res, n.ValueHash[:]...)
		res = binary.AppendUvarint(res, uint64(n.LastHashChangeVersion))
		return res
	}
	panic(fmt.Sprintf("unsupported node type %T", node))
}

// DecodeNode is the inverse of EncodeNode.
func DecodeNode(data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid node encoding, no data")
	}
	d := decoder{data: data[1:]}
	var res Node
	switch data[0] {
	case nullNodeTag:
		res = NullNode{}
	case internalNodeTag:
		count := int(d.byte())
		if count > 16 {
			return nil, fmt.Errorf("invalid node encoding, %d children", count)
		}
		node := &InternalNode{Children: make([]Child, 0, count)}
		for i := 0; i < count; i++ {
			step := Nibble(d.byte())
			if step > 15 {
				return nil, fmt.Errorf("invalid node encoding, invalid nibble %d", step)
			}
			if i > 0 && step <= node.Children[i-1].Nibble {
				return nil, fmt.Errorf("invalid node encoding, children out of order")
			}
			child := Child{Nibble: step, Version: common.Version(d.uvarint())}
			copy(child.Hash[:], d.bytes(common.HashSize))
			child.IsLeaf = d.byte() != 0
			node.Children = append(node.Children, child)
		}
		res = node
	case leafNodeTag:
		length := d.uvarint()
		if length > 3*KeyNibbles {
			return nil, fmt.Errorf("invalid node encoding, key suffix of %d nibbles", length)
		}
		packed := d.bytes(int(length+1) / 2)
		node := &LeafNode{}
		if d.err == nil {
			node.KeySuffix = UnpackPath(packed, int(length))
		}
		node.Payload = append([]byte{}, d.bytes(int(d.uvarint()))...)
		copy(node.ValueHash[:], d.bytes(common.HashSize))
		node.LastHashChangeVersion = common.Version(d.uvarint())
		res = node
	default:
		return nil, fmt.Errorf("invalid node encoding, unknown tag %d", data[0])
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.data) != 0 {
		return nil, fmt.Errorf("invalid node encoding, %d trailing bytes", len(d.data))
	}
	return res, nil
}

// decoder consumes a byte sequence and records the first error.
type decoder struct {
	data []byte
	err  error
}

const errTruncatedNode = common.ConstError("invalid node encoding, truncated data")

func (d *decoder) byte() byte {
	res := d.bytes(1)
	if res == nil {
		return 0
	}
	return res[0]
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.data) {
		d.err = errTruncatedNode
		return nil
	}
	res := d.data[:n]
	d.data = d.data[n:]
	return res
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	res, n := binary.Uvarint(d.data)
	if n <= 0 {
		d.err = errTruncatedNode
		return 0
	}
	d.data = d.data[n:]
	return res
}
