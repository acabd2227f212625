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

//go:generate mockgen -source sdb.go -destination sdb_mocks.go -package sdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/state"
)

// SubstateReader provides read access to the committed substates of a
// database. All results reflect the state at the time of the call.
type SubstateReader interface {
	// GetSubstate retrieves the value of the given substate. The boolean
	// result is false if the substate does not exist.
	GetSubstate(address common.SubstateAddress) ([]byte, bool, error)

	// ListEntries lists the substates of the given partition in ascending
	// order of their keys. The iterator must be released after use.
	ListEntries(node common.NodeId, partition common.PartitionId) (EntryIterator, error)

	// ListEntriesFrom lists the substates of the given partition with keys
	// not less than the given key in ascending order.
	ListEntriesFrom(node common.NodeId, partition common.PartitionId, from common.SubstateKey) (EntryIterator, error)

	// ListPartitionKeys lists the keys of all non-empty partitions in
	// ascending order. The iterator must be released after use.
	ListPartitionKeys() (PartitionIterator, error)
}

// EntryIterator iterates over the substates of a partition. It is initially
// positioned before the first entry.
type EntryIterator interface {
	Next() bool
	Key() common.SubstateKey
	// Value returns the value of the current entry. The result is owned by
	// the caller.
	Value() []byte
	// Error returns the first I/O error encountered, if any.
	Error() error
	Release()
}

// PartitionIterator iterates over partition keys. It is initially
// positioned before the first partition.
type PartitionIterator interface {
	Next() bool
	Partition() common.PartitionKey
	// Error returns the first I/O error encountered, if any.
	Error() error
	Release()
}

// Store implements the SubstateReader on top of the substate table of a
// key-value store or of a snapshot of one.
type Store struct {
	reader backend.KeyValueReader
}

// NewStore creates a reader for the substates kept in the given store.
func NewStore(reader backend.KeyValueReader) *Store {
	return &Store{reader: reader}
}

func (s *Store) GetSubstate(address common.SubstateAddress) ([]byte, bool, error) {
	value, err := s.reader.Get(backend.SubstateTable.Key(address.Encode()))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read substate %v: %w", address, err)
	}
	return value, true, nil
}

func (s *Store) ListEntries(node common.NodeId, partition common.PartitionId) (EntryIterator, error) {
	return s.ListEntriesFrom(node, partition, "")
}

func (s *Store) ListEntriesFrom(node common.NodeId, partition common.PartitionId, from common.SubstateKey) (EntryIterator, error) {
	prefix := common.PartitionKey{Node: node, Partition: partition}.Prefix()
	start, limit := backend.SubstateTable.PrefixRange(prefix)
	keyOffset := len(start)
	if from != "" {
		start = backend.SubstateTable.Key(common.NewAddress(node, partition, from).Encode())
	}
	return &entryIterator{
		iter:      s.reader.NewIterator(start, limit),
		keyOffset: keyOffset,
	}, nil
}

func (s *Store) ListPartitionKeys() (PartitionIterator, error) {
	start, limit := backend.SubstateTable.Range()
	return &partitionIterator{iter: s.reader.NewIterator(start, limit)}, nil
}

type entryIterator struct {
	iter      backend.Iterator
	keyOffset int
}

func (i *entryIterator) Next() bool {
	return i.iter.Next()
}

func (i *entryIterator) Key() common.SubstateKey {
	return common.SubstateKey(i.iter.Key()[i.keyOffset:])
}

func (i *entryIterator) Value() []byte {
	return bytes.Clone(i.iter.Value())
}

func (i *entryIterator) Error() error {
	return i.iter.Error()
}

func (i *entryIterator) Release() {
	i.iter.Release()
}

// partitionIterator enumerates distinct partition prefixes by seeking past
// the key range of each partition after visiting its first substate.
type partitionIterator struct {
	iter    backend.Iterator
	current common.PartitionKey
	// set if the underlying iterator has been positioned by a seek whose
	// result has not been consumed yet
	seeked      bool
	seekedValid bool
	done        bool
	err         error
}

func (i *partitionIterator) Next() bool {
	if i.done || i.err != nil {
		return false
	}
	var valid bool
	if i.seeked {
		valid, i.seeked = i.seekedValid, false
	} else {
		valid = i.iter.Next()
	}
	if !valid {
		i.done = true
		return false
	}

	key := i.iter.Key()[1:]
	if len(key) < common.PartitionPrefixLength {
		i.err = fmt.Errorf("invalid substate key %x in database", key)
		return false
	}
	address, err := common.DecodeAddress(key)
	if err != nil {
		i.err = err
		return false
	}
	i.current = address.PartitionKey()

	limit := backend.UpperBound(key[:common.PartitionPrefixLength])
	if limit == nil {
		// the current partition is the last possible one
		i.seeked, i.seekedValid = true, false
		return true
	}
	i.seeked = true
	i.seekedValid = i.iter.Seek(backend.SubstateTable.Key(limit))
	return true
}

func (i *partitionIterator) Partition() common.PartitionKey {
	return i.current
}

func (i *partitionIterator) Error() error {
	if i.err != nil {
		return i.err
	}
	return i.iter.Error()
}

func (i *partitionIterator) Release() {
	i.iter.Release()
}

// ApplyUpdates records the changes of the given update in the batch. Deltas
// are recorded as individual puts and deletes; resets delete the partition's
// full key range before the new content is put.
func ApplyUpdates(batch backend.Batch, updates *state.StateUpdates) error {
	return updates.ApplyTo(batchTarget{batch})
}

type batchTarget struct {
	batch backend.Batch
}

func (t batchTarget) ResetPartition(partition common.PartitionKey) error {
	start, limit := backend.SubstateTable.PrefixRange(partition.Prefix())
	return t.batch.DeleteRange(start, limit)
}

func (t batchTarget) UpsertSubstate(address common.SubstateAddress, value []byte) error {
	return t.batch.Put(backend.SubstateTable.Key(address.Encode()), value)
}

func (t batchTarget) DeleteSubstate(address common.SubstateAddress) error {
	return t.batch.Delete(backend.SubstateTable.Key(address.Encode()))
}

// Entry is a substate key-value pair of a partition.
type Entry struct {
	Key   common.SubstateKey
	Value []byte
}

// ReadPartition collects all entries of a partition in key order.
func ReadPartition(reader SubstateReader, node common.NodeId, partition common.PartitionId) ([]Entry, error) {
	iter, err := reader.ListEntries(node, partition)
	if err != nil {
		return nil, err
	}
	defer iter.Release()
	var res []Entry
	for iter.Next() {
		res = append(res, Entry{Key: iter.Key(), Value: iter.Value()})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to list entries of partition %v: %w", common.PartitionKey{Node: node, Partition: partition}, err)
	}
	return res, nil
}

// VisitSubstates calls the visitor for every substate of the database in
// ascending address order until the visitor returns an error.
func VisitSubstates(reader SubstateReader, visit func(address common.SubstateAddress, value []byte) error) error {
	partitions, err := reader.ListPartitionKeys()
	if err != nil {
		return err
	}
	defer partitions.Release()
	for partitions.Next() {
		key := partitions.Partition()
		entries, err := ReadPartition(reader, key.Node, key.Partition)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := visit(common.NewAddress(key.Node, key.Partition, entry.Key), entry.Value); err != nil {
				return err
			}
		}
	}
	return partitions.Error()
}
