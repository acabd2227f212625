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
	"errors"
	"fmt"
)

// maxTreeDepth is the length of the full path of substate leaves.
const maxTreeDepth = 3 * KeyNibbles

// CollectStaleParts deletes the nodes of the given stale parts. Parts of
// kind StaleNode are deleted directly, sub-trees are walked breadth first,
// including the tiers rooted by their leaves. Nodes already missing are
// skipped, so collecting the same parts repeatedly is safe. The number of
// deleted nodes is returned.
//
// Within a sub-tree, nodes are deleted in reverse walk order, so the roots of
// a sub-tree are deleted last. Thus, an interrupted collection can be
// resumed by collecting the same parts again.
func CollectStaleParts(store ReadableTreeStore, deleter NodeDeleter, parts []StalePart) (int, error) {
	count := 0
	for _, part := range parts {
		switch part.Kind {
		case StaleNode:
			if err := deleter.DeleteNode(part.Key); err != nil {
				return count, err
			}
			count++
		case StaleSubtree:
			keys, err := collectSubtree(store, part.Key)
			if err != nil {
				return count, err
			}
			for i := len(keys) - 1; i >= 0; i-- {
				if err := deleter.DeleteNode(keys[i]); err != nil {
					return count, err
				}
				count++
			}
		default:
			return count, fmt.Errorf("unknown stale part kind %d", part.Kind)
		}
	}
	return count, nil
}

// collectSubtree lists the keys of all nodes present in the sub-tree rooted
// by the given key in breadth-first order.
func collectSubtree(store ReadableTreeStore, root NodeKey) ([]NodeKey, error) {
	res := []NodeKey{}
	queue := []NodeKey{root}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		node, err := store.GetNode(key)
		if errors.Is(err, ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, key)
		switch n := node.(type) {
		case *InternalNode:
			for _, child := range n.Children {
				queue = append(queue, key.Child(child.Nibble, child.Version))
			}
		case *LeafNode:
			if full := key.Path.Concat(n.KeySuffix); full.Length() < maxTreeDepth {
				queue = append(queue, NodeKey{Version: n.LastHashChangeVersion, Path: full})
			}
		}
	}
	return res, nil
}
