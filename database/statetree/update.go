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
	"fmt"

	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/state"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// NodeEntry is a node together with the key it is stored under.
type NodeEntry struct {
	Key  NodeKey
	Node Node
}

// UpdateResult summarizes the effects of applying a set of state updates to
// the tree.
type UpdateResult struct {
	// RootHash is the root hash of the updated tree.
	RootHash common.Hash
	// RootVersion is the version of the root node of the updated tree; nil
	// if the updated tree is empty.
	RootVersion *common.Version
	// NewNodes are the nodes created by the update, ordered by key.
	NewNodes []NodeEntry
	// StaleParts lists the parts of the tree no longer reachable from the
	// updated root, in the order they have been replaced.
	StaleParts []StalePart
}

// Update applies the given state updates to the tree of the given root
// version and produces the nodes of the tree of version nextVersion. The
// store is not modified; the resulting nodes need to be persisted by the
// caller. A nil rootVersion denotes the empty tree.
//
// Updates are applied bottom-up: for every modified entity, the substate
// tiers of its modified partitions are updated first, then its partition
// tier, and finally the entity tier.
func Update(
	store ReadableTreeStore,
	rootVersion *common.Version,
	nextVersion common.Version,
	updates *state.StateUpdates,
) (*UpdateResult, error) {
	if rootVersion != nil && *rootVersion >= nextVersion {
		return nil, fmt.Errorf("invalid update from version %d to version %d", *rootVersion, nextVersion)
	}
	u := &updater{
		store:    store,
		next:     nextVersion,
		newNodes: map[NodeKey]Node{},
	}

	root := RootKey(rootVersion)
	entityChanges := []change{}
	partitions := updates.Partitions()
	for start := 0; start < len(partitions); {
		node := partitions[start].Node
		end := start + 1
		for end < len(partitions) && partitions[end].Node == node {
			end++
		}
		entityChange, found, err := u.updateEntity(root, node, partitions[start:end], updates)
		if err != nil {
			return nil, err
		}
		if found {
			entityChanges = append(entityChanges, entityChange)
		}
		start = end
	}
	// Partitions are grouped in NodeId order, the tier is ordered by path.
	sortChanges(entityChanges)

	u.tier = entityTier
	out, child, err := u.update(root, EmptyPath(), 0, entityChanges)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{StaleParts: u.stale}
	switch out {
	case unchanged:
		res.RootVersion = rootVersion
		if res.RootHash, err = GetRootHash(store, rootVersion); err != nil {
			return nil, err
		}
	case removed:
		res.RootHash = common.PlaceholderHash
	case replaced:
		version := child.Version
		res.RootVersion = &version
		res.RootHash = child.Hash
	}

	keys := maps.Keys(u.newNodes)
	slices.SortFunc(keys, NodeKey.Compare)
	res.NewNodes = make([]NodeEntry, 0, len(keys))
	for _, key := range keys {
		res.NewNodes = append(res.NewNodes, NodeEntry{Key: key, Node: u.newNodes[key]})
	}
	return res, nil
}

// updateEntity updates the partition tier of the given entity and the
// substate tiers of the given partitions and produces the resulting change
// of the entity tier, if any.
func (u *updater) updateEntity(
	root *NodeKey,
	node common.NodeId,
	partitions []common.PartitionKey,
	updates *state.StateUpdates,
) (change, bool, error) {
	entityPath := KeyPath(node[:])
	entityLeaf, err := findLeaf(u.store, root, EmptyPath(), entityPath)
	if err != nil {
		return change{}, false, err
	}
	var partitionRoot *NodeKey
	if entityLeaf != nil {
		partitionRoot = &NodeKey{Version: entityLeaf.LastHashChangeVersion, Path: entityPath}
	}

	partitionChanges := make([]change, 0, len(partitions))
	for _, key := range partitions {
		partitionPath := KeyPath([]byte{byte(key.Partition)})
		partitionLeaf, err := findLeaf(u.store, partitionRoot, entityPath, partitionPath)
		if err != nil {
			return change{}, false, err
		}
		base := entityPath.Concat(partitionPath)
		var substateRoot *NodeKey
		if partitionLeaf != nil {
			substateRoot = &NodeKey{Version: partitionLeaf.LastHashChangeVersion, Path: base}
		}

		partition := updates.Partition(key)
		wasReset := false
		if partition.Reset && substateRoot != nil {
			u.stale = append(u.stale, StalePart{Kind: StaleSubtree, Key: *substateRoot})
			substateRoot = nil
			wasReset = true
		}

		sorted := partition.Sorted()
		substateChanges := make([]change, 0, len(sorted))
		for _, update := range sorted {
			keyBytes := update.Key.Bytes()
			c := change{path: KeyPath(keyBytes), payload: keyBytes, version: u.next}
			if update.Deleted {
				c.delete = true
			} else {
				c.hash = common.HashOf(update.Value)
			}
			substateChanges = append(substateChanges, c)
		}
		// Changes need to be ordered by their position in the tier.
		sortChanges(substateChanges)

		u.tier = substateTier
		out, child, err := u.update(substateRoot, base, 0, substateChanges)
		if err != nil {
			return change{}, false, err
		}
		if out == unchanged && wasReset {
			out = removed
		}
		if c, found := tierChange(out, child, partitionPath, []byte{byte(key.Partition)}); found {
			partitionChanges = append(partitionChanges, c)
		}
	}
	sortChanges(partitionChanges)

	u.tier = partitionTier
	out, child, err := u.update(partitionRoot, entityPath, 0, partitionChanges)
	if err != nil {
		return change{}, false, err
	}
	c, found := tierChange(out, child, entityPath, node[:])
	return c, found, nil
}

// tierChange converts the outcome of a tier update into the change of the
// leaf referencing the tier in the tier above.
func tierChange(out outcome, root Child, path NibblePath, payload []byte) (change, bool) {
	switch out {
	case removed:
		return change{path: path, payload: payload, delete: true}, true
	case replaced:
		return change{path: path, payload: payload, hash: root.Hash, version: root.Version}, true
	}
	return change{}, false
}

type tier int

const (
	entityTier tier = iota
	partitionTier
	substateTier
)

// change is a single modification of a tier.
type change struct {
	path    NibblePath // the position of the key relative to the tier root
	payload []byte
	hash    common.Hash
	version common.Version
	delete  bool
}

func (c change) toLeaf(depth int) *LeafNode {
	return &LeafNode{
		KeySuffix:             c.path.Suffix(depth),
		Payload:               c.payload,
		ValueHash:             c.hash,
		LastHashChangeVersion: c.version,
	}
}

func sortChanges(changes []change) {
	slices.SortFunc(changes, func(a, b change) int {
		return a.path.Compare(b.path)
	})
}

type outcome int

const (
	unchanged outcome = iota
	removed
	replaced
)

type updater struct {
	store    ReadableTreeStore
	next     common.Version
	tier     tier
	newNodes map[NodeKey]Node
	stale    []StalePart
}

// update applies the given changes to the sub-tree rooted by the node of the
// given key located at the given position, depth nibbles below the root of
// the current tier. A nil key denotes an empty sub-tree. Changes must be
// ordered by path and share the first depth nibbles of their path. If the
// sub-tree gets replaced, the returned child references its new root.
func (u *updater) update(key *NodeKey, pos NibblePath, depth int, changes []change) (outcome, Child, error) {
	if len(changes) == 0 {
		return unchanged, Child{}, nil
	}
	if key == nil {
		puts := make([]change, 0, len(changes))
		for _, c := range changes {
			if !c.delete {
				puts = append(puts, c)
			}
		}
		if len(puts) == 0 {
			return unchanged, Child{}, nil
		}
		return replaced, u.build(pos, depth, puts), nil
	}

	node, err := u.store.GetNode(*key)
	if err != nil {
		return unchanged, Child{}, err
	}
	switch n := node.(type) {
	case *LeafNode:
		return u.updateLeaf(*key, n, depth, changes)
	case *InternalNode:
		return u.updateInternal(*key, n, depth, changes)
	}
	return unchanged, Child{}, fmt.Errorf("invalid node type %T at %v", node, *key)
}

func (u *updater) updateLeaf(key NodeKey, leaf *LeafNode, depth int, changes []change) (outcome, Child, error) {
	leafPath := key.Path.Suffix(key.Path.Length() - depth).Concat(leaf.KeySuffix)
	current := change{
		path:    leafPath,
		payload: leaf.Payload,
		hash:    leaf.ValueHash,
		version: leaf.LastHashChangeVersion,
	}

	var own *change
	others := make([]change, 0, len(changes))
	for i := range changes {
		if changes[i].path == leafPath {
			own = &changes[i]
		} else if !changes[i].delete {
			others = append(others, changes[i])
		}
	}

	if len(others) == 0 {
		if own == nil {
			return unchanged, Child{}, nil
		}
		if own.delete {
			u.markStale(key)
			return removed, Child{}, nil
		}
		if u.isUnchanged(leaf, own) {
			return unchanged, Child{}, nil
		}
		u.markStale(key)
		return replaced, u.putLeaf(key.Path, own.toLeaf(depth)), nil
	}

	u.markStale(key)
	entries := others
	if own == nil || (!own.delete && u.isUnchanged(leaf, own)) {
		entries = append(entries, current)
	} else if !own.delete {
		entries = append(entries, *own)
	}
	sortChanges(entries)
	return replaced, u.build(key.Path, depth, entries), nil
}

// isUnchanged tests whether the given change leaves the given leaf as it is.
// Substate leaves are unchanged if the value hash is preserved; leaves of
// upper tiers also need to keep referencing the same root in the tier below.
func (u *updater) isUnchanged(leaf *LeafNode, c *change) bool {
	if leaf.ValueHash != c.hash {
		return false
	}
	return u.tier == substateTier || leaf.LastHashChangeVersion == c.version
}

func (u *updater) updateInternal(key NodeKey, node *InternalNode, depth int, changes []change) (outcome, Child, error) {
	children := make([]Child, 0, len(node.Children)+len(changes))
	modified := false
	next := 0
	for start := 0; start < len(changes); {
		step := changes[start].path.Get(depth)
		end := start + 1
		for end < len(changes) && changes[end].path.Get(depth) == step {
			end++
		}

		// Copy untouched children preceding the current step.
		for next < len(node.Children) && node.Children[next].Nibble < step {
			children = append(children, node.Children[next])
			next++
		}
		var childKey *NodeKey
		var current Child
		if next < len(node.Children) && node.Children[next].Nibble == step {
			current = node.Children[next]
			childKey = &NodeKey{Version: current.Version, Path: key.Path.Child(step)}
			next++
		}

		out, child, err := u.update(childKey, key.Path.Child(step), depth+1, changes[start:end])
		if err != nil {
			return unchanged, Child{}, err
		}
		switch out {
		case unchanged:
			if childKey != nil {
				children = append(children, current)
			}
		case removed:
			modified = true
		case replaced:
			modified = true
			child.Nibble = step
			children = append(children, child)
		}
		start = end
	}
	if !modified {
		return unchanged, Child{}, nil
	}
	children = append(children, node.Children[next:]...)

	u.markStale(key)
	if len(children) == 0 {
		return removed, Child{}, nil
	}
	if len(children) == 1 && children[0].IsLeaf {
		return u.collapse(key.Path, children[0])
	}
	return replaced, u.putInternal(key.Path, children), nil
}

// collapse moves the single remaining leaf child of an internal node into
// the position of the internal node.
func (u *updater) collapse(pos NibblePath, child Child) (outcome, Child, error) {
	childKey := NodeKey{Version: child.Version, Path: pos.Child(child.Nibble)}
	var node Node
	if child.Version == u.next {
		node = u.newNodes[childKey]
		delete(u.newNodes, childKey)
	} else {
		var err error
		if node, err = u.store.GetNode(childKey); err != nil {
			return unchanged, Child{}, err
		}
		u.markStale(childKey)
	}
	leaf, ok := node.(*LeafNode)
	if !ok {
		return unchanged, Child{}, fmt.Errorf("expected leaf at %v, got %T", childKey, node)
	}
	moved := *leaf
	moved.KeySuffix = CreatePath(child.Nibble).Concat(leaf.KeySuffix)
	return replaced, u.putLeaf(pos, &moved), nil
}

// build creates a new sub-tree at the given position containing the given
// entries, which must be ordered and share the first depth nibbles.
func (u *updater) build(pos NibblePath, depth int, entries []change) Child {
	if len(entries) == 1 {
		return u.putLeaf(pos, entries[0].toLeaf(depth))
	}
	children := make([]Child, 0, 16)
	for start := 0; start < len(entries); {
		step := entries[start].path.Get(depth)
		end := start + 1
		for end < len(entries) && entries[end].path.Get(depth) == step {
			end++
		}
		child := u.build(pos.Child(step), depth+1, entries[start:end])
		child.Nibble = step
		children = append(children, child)
		start = end
	}
	return u.putInternal(pos, children)
}

func (u *updater) putLeaf(pos NibblePath, leaf *LeafNode) Child {
	u.newNodes[NodeKey{Version: u.next, Path: pos}] = leaf
	return Child{Version: u.next, Hash: leaf.Hash(), IsLeaf: true}
}

func (u *updater) putInternal(pos NibblePath, children []Child) Child {
	node := &InternalNode{Children: children}
	u.newNodes[NodeKey{Version: u.next, Path: pos}] = node
	return Child{Version: u.next, Hash: node.Hash()}
}

func (u *updater) markStale(key NodeKey) {
	u.stale = append(u.stale, StalePart{Kind: StaleNode, Key: key})
}
