// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/substatedb/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// StateUpdates summarizes the effective changes to the substate database
// produced by a transaction. Changes are grouped per partition; each
// partition is either updated by a delta of individual substate upserts and
// deletes, or reset, replacing its entire content.
//
// An example use of an update would look like this:
//
//	updates := NewStateUpdates()
//	updates.Upsert(common.NewAddress(node, 1, "a"), []byte{1})
//	updates.Delete(common.NewAddress(node, 1, "b"))
//	updates.ResetPartition(node, 2)
//	updates.Upsert(common.NewAddress(node, 2, "x"), []byte{2})
//
// Within a single instance, a reset of a partition subsumes all delta
// updates recorded for that partition before the reset.
type StateUpdates struct {
	partitions map[common.PartitionKey]*PartitionUpdates
}

// PartitionUpdates lists the changes of a single partition. If Reset is set,
// the partition's previous content is dropped and Substates holds the
// complete new content, consisting of upserts only.
type PartitionUpdates struct {
	Reset     bool
	Substates map[common.SubstateKey]SubstateUpdate
}

// SubstateUpdate is a single substate change, either an upsert of a value
// or a deletion.
type SubstateUpdate struct {
	Value   []byte
	Deleted bool
}

// KeyedUpdate is a SubstateUpdate accompanied by the key of the substate.
type KeyedUpdate struct {
	Key common.SubstateKey
	SubstateUpdate
}

func NewStateUpdates() *StateUpdates {
	return &StateUpdates{partitions: map[common.PartitionKey]*PartitionUpdates{}}
}

func (u *StateUpdates) partition(key common.PartitionKey) *PartitionUpdates {
	if u.partitions == nil {
		u.partitions = map[common.PartitionKey]*PartitionUpdates{}
	}
	res, found := u.partitions[key]
	if !found {
		res = &PartitionUpdates{Substates: map[common.SubstateKey]SubstateUpdate{}}
		u.partitions[key] = res
	}
	return res
}

// Upsert registers a new value for the given substate.
func (u *StateUpdates) Upsert(address common.SubstateAddress, value []byte) {
	if value == nil {
		value = []byte{}
	}
	u.partition(address.PartitionKey()).Substates[address.Key] = SubstateUpdate{Value: value}
}

// Delete registers the removal of the given substate. Within a reset
// partition, the substate is removed from the new content instead.
func (u *StateUpdates) Delete(address common.SubstateAddress) {
	partition := u.partition(address.PartitionKey())
	if partition.Reset {
		delete(partition.Substates, address.Key)
		return
	}
	partition.Substates[address.Key] = SubstateUpdate{Deleted: true}
}

// ResetPartition registers the removal of all substates of the given
// partition. Previously recorded changes of the partition are dropped,
// subsequently recorded upserts form the partition's new content.
func (u *StateUpdates) ResetPartition(node common.NodeId, partition common.PartitionId) {
	key := common.PartitionKey{Node: node, Partition: partition}
	if u.partitions == nil {
		u.partitions = map[common.PartitionKey]*PartitionUpdates{}
	}
	u.partitions[key] = &PartitionUpdates{
		Reset:     true,
		Substates: map[common.SubstateKey]SubstateUpdate{},
	}
}

// Partition returns the updates registered for the given partition or nil,
// if there are none.
func (u *StateUpdates) Partition(key common.PartitionKey) *PartitionUpdates {
	return u.partitions[key]
}

// Partitions lists the keys of all updated partitions in ascending order.
func (u *StateUpdates) Partitions() []common.PartitionKey {
	res := maps.Keys(u.partitions)
	slices.SortFunc(res, func(a, b common.PartitionKey) int {
		return a.Compare(b)
	})
	return res
}

// IsEmpty is true if there is no change covered by this update.
func (u *StateUpdates) IsEmpty() bool {
	return len(u.partitions) == 0
}

// Len returns the number of substate changes and partition resets covered by
// this update.
func (u *StateUpdates) Len() int {
	res := 0
	for _, partition := range u.partitions {
		res += len(partition.Substates)
		if partition.Reset {
			res++
		}
	}
	return res
}

// Sorted lists the changes of a partition ordered by substate key.
func (p *PartitionUpdates) Sorted() []KeyedUpdate {
	res := make([]KeyedUpdate, 0, len(p.Substates))
	for key, update := range p.Substates {
		res = append(res, KeyedUpdate{Key: key, SubstateUpdate: update})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Key < res[j].Key
	})
	return res
}

// Merge records the changes of the given update after the changes of this
// update, as if both had been recorded in sequence.
func (u *StateUpdates) Merge(other *StateUpdates) {
	// recording into a StateUpdates never fails
	_ = other.ApplyTo(mergeTarget{u})
}

type mergeTarget struct {
	updates *StateUpdates
}

func (t mergeTarget) ResetPartition(partition common.PartitionKey) error {
	t.updates.ResetPartition(partition.Node, partition.Partition)
	return nil
}

func (t mergeTarget) UpsertSubstate(address common.SubstateAddress, value []byte) error {
	t.updates.Upsert(address, value)
	return nil
}

func (t mergeTarget) DeleteSubstate(address common.SubstateAddress) error {
	t.updates.Delete(address)
	return nil
}

// UpdateTarget is an interface for components offering individual mutation
// functions for the changes of an update. It is the parameter type of the
// ApplyTo function below and allows storage layers to share the order in
// which changes are processed.
type UpdateTarget interface {
	// ResetPartition removes all substates of the given partition.
	ResetPartition(partition common.PartitionKey) error

	// UpsertSubstate sets the value of the given substate.
	UpsertSubstate(address common.SubstateAddress, value []byte) error

	// DeleteSubstate removes the given substate.
	DeleteSubstate(address common.SubstateAddress) error
}

// ApplyTo applies this update to the provided target in a standardized
// order: partitions in ascending order, and within each partition the reset,
// if present, followed by the individual changes in ascending key order.
func (u *StateUpdates) ApplyTo(target UpdateTarget) error {
	for _, key := range u.Partitions() {
		partition := u.partitions[key]
		if partition.Reset {
			if err := target.ResetPartition(key); err != nil {
				return err
			}
		}
		for _, change := range partition.Sorted() {
			address := common.SubstateAddress{Node: key.Node, Partition: key.Partition, Key: change.Key}
			var err error
			if change.Deleted {
				err = target.DeleteSubstate(address)
			} else {
				err = target.UpsertSubstate(address, change.Value)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

const updateEncodingVersion byte = 0

const (
	flagUpsert byte = iota
	flagDelete
)

// ToBytes produces a deterministic binary encoding of this update.
func (u *StateUpdates) ToBytes() []byte {
	res := []byte{updateEncodingVersion}
	res = binary.BigEndian.AppendUint32(res, uint32(len(u.partitions)))
	for _, key := range u.Partitions() {
		partition := u.partitions[key]
		res = append(res, key.Prefix()...)
		if partition.Reset {
			res = append(res, 1)
		} else {
			res = append(res, 0)
		}
		res = binary.BigEndian.AppendUint32(res, uint32(len(partition.Substates)))
		for _, change := range partition.Sorted() {
			res = binary.AppendUvarint(res, uint64(len(change.Key)))
			res = append(res, change.Key...)
			if change.Deleted {
				res = append(res, flagDelete)
				continue
			}
			res = append(res, flagUpsert)
			res = binary.AppendUvarint(res, uint64(len(change.Value)))
			res = append(res, change.Value...)
		}
	}
	return res
}

// UpdatesFromBytes parses an update encoded by ToBytes.
func UpdatesFromBytes(data []byte) (*StateUpdates, error) {
	if len(data) < 1+4 {
		return nil, fmt.Errorf("invalid encoding, too few bytes")
	}
	if data[0] != updateEncodingVersion {
		return nil, fmt.Errorf("unknown encoding version: %d", data[0])
	}
	numPartitions := binary.BigEndian.Uint32(data[1:])
	data = data[5:]

	readBytes := func() ([]byte, error) {
		length, n := binary.Uvarint(data)
		if n <= 0 || uint64(len(data)-n) < length {
			return nil, fmt.Errorf("invalid encoding, truncated byte string")
		}
		res := data[n : n+int(length)]
		data = data[n+int(length):]
		return res, nil
	}

	res := NewStateUpdates()
	for i := uint32(0); i < numPartitions; i++ {
		if len(data) < common.PartitionPrefixLength+1+4 {
			return nil, fmt.Errorf("invalid encoding, truncated partition header")
		}
		var key common.PartitionKey
		copy(key.Node[:], data)
		key.Partition = common.PartitionId(data[common.NodeIdLength])
		data = data[common.PartitionPrefixLength:]
		if _, found := res.partitions[key]; found {
			return nil, fmt.Errorf("invalid encoding, duplicated partition %v", key)
		}
		partition := res.partition(key)
		partition.Reset = data[0] == 1
		numSubstates := binary.BigEndian.Uint32(data[1:])
		data = data[5:]

		for j := uint32(0); j < numSubstates; j++ {
			substateKey, err := readBytes()
			if err != nil {
				return nil, err
			}
			if len(data) < 1 {
				return nil, fmt.Errorf("invalid encoding, missing change type")
			}
			flag := data[0]
			data = data[1:]
			switch flag {
			case flagDelete:
				if partition.Reset {
					return nil, fmt.Errorf("invalid encoding, delete in reset partition %v", key)
				}
				partition.Substates[common.SubstateKey(substateKey)] = SubstateUpdate{Deleted: true}
			case flagUpsert:
				value, err := readBytes()
				if err != nil {
					return nil, err
				}
				partition.Substates[common.SubstateKey(substateKey)] = SubstateUpdate{Value: slices.Clone(value)}
			default:
				return nil, fmt.Errorf("invalid encoding, unknown change type %d", flag)
			}
		}
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("invalid encoding, %d trailing bytes", len(data))
	}
	return res, nil
}

func (u *StateUpdates) String() string {
	return fmt.Sprintf("StateUpdates{partitions: %d, changes: %d}", len(u.partitions), u.Len())
}
