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
	"bytes"
	"fmt"

	"github.com/Fantom-foundation/substatedb/common"
	"golang.org/x/exp/slices"
)

// RootKey returns the key of the root node of the tree of the given root
// version or nil for the empty tree.
func RootKey(rootVersion *common.Version) *NodeKey {
	if rootVersion == nil {
		return nil
	}
	return &NodeKey{Version: *rootVersion, Path: EmptyPath()}
}

// GetRootHash computes the hash of the tree of the given root version.
func GetRootHash(store ReadableTreeStore, rootVersion *common.Version) (common.Hash, error) {
	if rootVersion == nil {
		return common.PlaceholderHash, nil
	}
	node, err := store.GetNode(*RootKey(rootVersion))
	if err != nil {
		return common.Hash{}, err
	}
	return node.Hash(), nil
}

// findLeaf locates the leaf of the given key path in the tier rooted by the
// given node at the given base path. The result is nil if there is no such
// leaf.
func findLeaf(store ReadableTreeStore, root *NodeKey, base NibblePath, keyPath NibblePath) (*LeafNode, error) {
	if root == nil {
		return nil, nil
	}
	full := base.Concat(keyPath)
	key := *root
	for {
		node, err := store.GetNode(key)
		if err != nil {
			return nil, err
		}
		switch n := node.(type) {
		case *LeafNode:
			if key.Path.Concat(n.KeySuffix) != full {
				return nil, nil
			}
			return n, nil
		case *InternalNode:
			if key.Path.Length() >= full.Length() {
				return nil, fmt.Errorf("invalid tree, internal node at key depth %v", key)
			}
			step := full.Get(key.Path.Length())
			child, found := n.GetChild(step)
			if !found {
				return nil, nil
			}
			key = key.Child(step, child.Version)
		default:
			return nil, fmt.Errorf("invalid tree, unexpected node %v at %v", node, key)
		}
	}
}

// GetEntityLeaf locates the entity-tier leaf of the given entity.
func GetEntityLeaf(store ReadableTreeStore, rootVersion *common.Version, node common.NodeId) (*LeafNode, error) {
	return findLeaf(store, RootKey(rootVersion), EmptyPath(), KeyPath(node[:]))
}

// GetPartitionLeaf locates the partition-tier leaf of the given partition.
func GetPartitionLeaf(store ReadableTreeStore, rootVersion *common.Version, key common.PartitionKey) (*LeafNode, error) {
	root, err := partitionTierRoot(store, rootVersion, key.Node)
	if err != nil || root == nil {
		return nil, err
	}
	return findLeaf(store, root, root.Path, partitionPath(key.Partition))
}

// GetSubstateLeaf locates the substate-tier leaf of the given substate.
func GetSubstateLeaf(store ReadableTreeStore, rootVersion *common.Version, address common.SubstateAddress) (*LeafNode, error) {
	root, err := substateTierRoot(store, rootVersion, address.PartitionKey())
	if err != nil || root == nil {
		return nil, err
	}
	return findLeaf(store, root, root.Path, KeyPath(address.Key.Bytes()))
}

// PartitionTierHash returns the root hash of the partition tier of the given
// entity. It only depends on the substates of the entity, not on its id.
func PartitionTierHash(store ReadableTreeStore, rootVersion *common.Version, node common.NodeId) (common.Hash, bool, error) {
	leaf, err := GetEntityLeaf(store, rootVersion, node)
	if err != nil || leaf == nil {
		return common.Hash{}, false, err
	}
	return leaf.ValueHash, true, nil
}

func partitionPath(partition common.PartitionId) NibblePath {
	return KeyPath([]byte{byte(partition)})
}

func partitionTierRoot(store ReadableTreeStore, rootVersion *common.Version, node common.NodeId) (*NodeKey, error) {
	leaf, err := GetEntityLeaf(store, rootVersion, node)
	if err != nil || leaf == nil {
		return nil, err
	}
	return &NodeKey{Version: leaf.LastHashChangeVersion, Path: KeyPath(node[:])}, nil
}

func substateTierRoot(store ReadableTreeStore, rootVersion *common.Version, key common.PartitionKey) (*NodeKey, error) {
	leaf, err := GetPartitionLeaf(store, rootVersion, key)
	if err != nil || leaf == nil {
		return nil, err
	}
	return &NodeKey{Version: leaf.LastHashChangeVersion, Path: KeyPath(key.Node[:]).Concat(partitionPath(key.Partition))}, nil
}

// ListLeaves collects the leaves of the tier rooted by the given node. The
// leaves of lower tiers are not included. Leaves are ordered by their
// position in the tier.
func ListLeaves(store ReadableTreeStore, root *NodeKey) ([]*LeafNode, error) {
	res := []*LeafNode{}
	if root == nil {
		return res, nil
	}
	var visit func(key NodeKey) error
	visit = func(key NodeKey) error {
		node, err := store.GetNode(key)
		if err != nil {
			return err
		}
		switch n := node.(type) {
		case *LeafNode:
			res = append(res, n)
		case *InternalNode:
			for _, child := range n.Children {
				if err := visit(key.Child(child.Nibble, child.Version)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return res, visit(*root)
}

// EntityLeaves lists the leaves of the entity tier ordered by NodeId.
func EntityLeaves(store ReadableTreeStore, rootVersion *common.Version) ([]*LeafNode, error) {
	return sortedLeaves(ListLeaves(store, RootKey(rootVersion)))
}

// PartitionLeaves lists the leaves of the partition tier of the given entity
// ordered by PartitionId.
func PartitionLeaves(store ReadableTreeStore, rootVersion *common.Version, node common.NodeId) ([]*LeafNode, error) {
	root, err := partitionTierRoot(store, rootVersion, node)
	if err != nil {
		return nil, err
	}
	return sortedLeaves(ListLeaves(store, root))
}

// SubstateLeaves lists the leaves of the substate tier of the given partition
// ordered by SubstateKey.
func SubstateLeaves(store ReadableTreeStore, rootVersion *common.Version, key common.PartitionKey) ([]*LeafNode, error) {
	root, err := substateTierRoot(store, rootVersion, key)
	if err != nil {
		return nil, err
	}
	return sortedLeaves(ListLeaves(store, root))
}

// sortedLeaves orders leaves by their payload; the order of the leaves in
// the tree follows the hashes of the payloads.
func sortedLeaves(leaves []*LeafNode, err error) ([]*LeafNode, error) {
	if err != nil {
		return nil, err
	}
	slices.SortFunc(leaves, func(a, b *LeafNode) int {
		return bytes.Compare(a.Payload, b.Payload)
	})
	return leaves, nil
}
