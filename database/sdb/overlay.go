// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sdb

import (
	"bytes"

	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/state"
	"golang.org/x/exp/slices"
)

// Overlay stages uncommitted updates on top of a read-only SubstateReader.
// Reads observe the staged changes as if they had been committed. The base
// reader is never modified; the staged changes can be obtained through
// Updates and committed to the underlying database in one step.
//
// An Overlay is not safe for concurrent use.
type Overlay struct {
	base   SubstateReader
	staged *state.StateUpdates
}

func NewOverlay(base SubstateReader) *Overlay {
	return &Overlay{base: base, staged: state.NewStateUpdates()}
}

// Stage records the given updates on top of the previously staged ones.
func (o *Overlay) Stage(updates *state.StateUpdates) {
	o.staged.Merge(updates)
}

// Updates returns all changes staged so far, merged into a single update.
func (o *Overlay) Updates() *state.StateUpdates {
	res := state.NewStateUpdates()
	res.Merge(o.staged)
	return res
}

func (o *Overlay) GetSubstate(address common.SubstateAddress) ([]byte, bool, error) {
	partition := o.staged.Partition(address.PartitionKey())
	if partition == nil {
		return o.base.GetSubstate(address)
	}
	update, found := partition.Substates[address.Key]
	switch {
	case found && update.Deleted:
		return nil, false, nil
	case found:
		return bytes.Clone(update.Value), true, nil
	case partition.Reset:
		return nil, false, nil
	}
	return o.base.GetSubstate(address)
}

func (o *Overlay) ListEntries(node common.NodeId, partition common.PartitionId) (EntryIterator, error) {
	return o.ListEntriesFrom(node, partition, "")
}

func (o *Overlay) ListEntriesFrom(node common.NodeId, partition common.PartitionId, from common.SubstateKey) (EntryIterator, error) {
	updates := o.staged.Partition(common.PartitionKey{Node: node, Partition: partition})
	if updates == nil {
		return o.base.ListEntriesFrom(node, partition, from)
	}
	staged := updates.Sorted()
	for len(staged) > 0 && staged[0].Key < from {
		staged = staged[1:]
	}
	res := &overlayIterator{staged: staged}
	if !updates.Reset {
		base, err := o.base.ListEntriesFrom(node, partition, from)
		if err != nil {
			return nil, err
		}
		res.base = base
	}
	return res, nil
}

// ListPartitionKeys lists the non-empty partitions of the base reader and
// the staged updates. The list is collected eagerly.
func (o *Overlay) ListPartitionKeys() (PartitionIterator, error) {
	iter, err := o.base.ListPartitionKeys()
	if err != nil {
		return nil, err
	}
	keys := map[common.PartitionKey]struct{}{}
	for iter.Next() {
		keys[iter.Partition()] = struct{}{}
	}
	err = iter.Error()
	iter.Release()
	if err != nil {
		return nil, err
	}

	res := &partitionList{}
	for _, key := range o.staged.Partitions() {
		keys[key] = struct{}{}
	}
	for key := range keys {
		if o.staged.Partition(key) != nil {
			empty, err := o.isEmpty(key)
			if err != nil {
				return nil, err
			}
			if empty {
				continue
			}
		}
		res.keys = append(res.keys, key)
	}
	res.sort()
	return res, nil
}

func (o *Overlay) isEmpty(key common.PartitionKey) (bool, error) {
	iter, err := o.ListEntries(key.Node, key.Partition)
	if err != nil {
		return false, err
	}
	defer iter.Release()
	if iter.Next() {
		return false, nil
	}
	return true, iter.Error()
}

// overlayIterator merges the sorted staged changes of a partition with the
// entries of the base reader. A nil base denotes a reset partition.
type overlayIterator struct {
	base      EntryIterator
	baseValid bool
	started   bool
	staged    []state.KeyedUpdate
	key       common.SubstateKey
	value     []byte
}

func (i *overlayIterator) advanceBase() {
	i.baseValid = i.base != nil && i.base.Next()
}

func (i *overlayIterator) Next() bool {
	if !i.started {
		i.started = true
		i.advanceBase()
	}
	for {
		hasStaged := len(i.staged) > 0
		if !hasStaged && !i.baseValid {
			return false
		}
		if hasStaged && (!i.baseValid || i.staged[0].Key <= i.base.Key()) {
			change := i.staged[0]
			i.staged = i.staged[1:]
			if i.baseValid && change.Key == i.base.Key() {
				i.advanceBase()
			}
			if change.Deleted {
				continue
			}
			i.key, i.value = change.Key, change.Value
			return true
		}
		i.key, i.value = i.base.Key(), i.base.Value()
		i.advanceBase()
		return true
	}
}

func (i *overlayIterator) Key() common.SubstateKey {
	return i.key
}

func (i *overlayIterator) Value() []byte {
	return bytes.Clone(i.value)
}

func (i *overlayIterator) Error() error {
	if i.base == nil {
		return nil
	}
	return i.base.Error()
}

func (i *overlayIterator) Release() {
	if i.base != nil {
		i.base.Release()
	}
}

type partitionList struct {
	keys []common.PartitionKey
	pos  int
}

func (l *partitionList) sort() {
	slices.SortFunc(l.keys, func(a, b common.PartitionKey) int {
		return a.Compare(b)
	})
}

func (l *partitionList) Next() bool {
	if l.pos >= len(l.keys) {
		return false
	}
	l.pos++
	return true
}

func (l *partitionList) Partition() common.PartitionKey {
	return l.keys[l.pos-1]
}

func (l *partitionList) Error() error {
	return nil
}

func (l *partitionList) Release() {}
