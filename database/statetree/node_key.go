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
	"cmp"
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/substatedb/common"
)

// NodeKey identifies a tree node by the version it has been created at and
// its position in the tree. Nodes are never modified once created; a change
// of a node produces a new node with a new key.
type NodeKey struct {
	Version common.Version
	Path    NibblePath
}

// Child returns the key of a child of the addressed node created at the
// given version.
func (k NodeKey) Child(step Nibble, version common.Version) NodeKey {
	return NodeKey{Version: version, Path: k.Path.Child(step)}
}

// Compare orders node keys by version first, then by path length and finally
// by path. This is the order of the encoded keys.
func (k NodeKey) Compare(o NodeKey) int {
	if k.Version != o.Version {
		return cmp.Compare(k.Version, o.Version)
	}
	if k.Path.Length() != o.Path.Length() {
		return cmp.Compare(k.Path.Length(), o.Path.Length())
	}
	return k.Path.Compare(o.Path)
}

// Encode produces the storage key of the addressed node. It is the
// concatenation of the 8-byte big-endian version, the number of nibbles of
// the path as uvarint, and the packed nibbles. Hence, encoded keys of a
// version sort after all encoded keys of earlier versions.
func (k NodeKey) Encode() []byte {
	res := make([]byte, 0, 8+binary.MaxVarintLen64+(k.Path.Length()+1)/2)
	res = binary.BigEndian.AppendUint64(res, uint64(k.Version))
	res = binary.AppendUvarint(res, uint64(k.Path.Length()))
	return append(res, k.Path.Packed()...)
}

// DecodeNodeKey is the inverse of NodeKey.Encode.
func DecodeNodeKey(data []byte) (NodeKey, error) {
	key, rest, err := decodeNodeKey(data)
	if err != nil {
		return NodeKey{}, err
	}
	if len(rest) != 0 {
		return NodeKey{}, fmt.Errorf("invalid node key encoding, %d trailing bytes", len(rest))
	}
	return key, nil
}

func decodeNodeKey(data []byte) (NodeKey, []byte, error) {
	if len(data) < 9 {
		return NodeKey{}, nil, fmt.Errorf("invalid node key encoding, too few bytes")
	}
	version := common.Version(binary.BigEndian.Uint64(data))
	length, n := binary.Uvarint(data[8:])
	if n <= 0 {
		return NodeKey{}, nil, fmt.Errorf("invalid node key encoding, malformed path length")
	}
	data = data[8+n:]
	packedLength := (length + 1) / 2
	if uint64(len(data)) < packedLength {
		return NodeKey{}, nil, fmt.Errorf("invalid node key encoding, truncated path")
	}
	path := UnpackPath(data[:packedLength], int(length))
	return NodeKey{Version: version, Path: path}, data[packedLength:], nil
}

func (k NodeKey) String() string {
	return fmt.Sprintf("%d:[%v]", k.Version, k.Path)
}

// StalePartKind distinguishes single stale nodes from stale sub-trees.
type StalePartKind byte

const (
	// StaleNode marks a single node as stale.
	StaleNode StalePartKind = iota
	// StaleSubtree marks a node and all nodes reachable from it as stale,
	// including the roots and nodes of lower tiers.
	StaleSubtree
)

// StalePart is a part of a tree that is no longer referenced by the version
// it has been recorded at or any later version.
type StalePart struct {
	Kind StalePartKind
	Key  NodeKey
}

func (p StalePart) String() string {
	if p.Kind == StaleSubtree {
		return fmt.Sprintf("Subtree(%v)", p.Key)
	}
	return fmt.Sprintf("Node(%v)", p.Key)
}

// EncodeStaleParts produces a binary encoding of the given list of parts.
func EncodeStaleParts(parts []StalePart) []byte {
	res := binary.AppendUvarint(nil, uint64(len(parts)))
	for _, part := range parts {
		res = append(res, byte(part.Kind))
		res = append(res, part.Key.Encode()...)
	}
	return res
}

// DecodeStaleParts is the inverse of EncodeStaleParts.
func DecodeStaleParts(data []byte) ([]StalePart, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("invalid stale part encoding, malformed length")
	}
	data = data[n:]
	// every part occupies at least 10 bytes
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("invalid stale part encoding, %d parts exceed data size", count)
	}
	res := make([]StalePart, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) < 1 {
			return nil, fmt.Errorf("invalid stale part encoding, truncated")
		}
		kind := StalePartKind(data[0])
		if kind != StaleNode && kind != StaleSubtree {
			return nil, fmt.Errorf("invalid stale part encoding, unknown kind %d", kind)
		}
		key, rest, err := decodeNodeKey(data[1:])
		if err != nil {
			return nil, err
		}
		res = append(res, StalePart{Kind: kind, Key: key})
		data = rest
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("invalid stale part encoding, %d trailing bytes", len(data))
	}
	return res, nil
}
