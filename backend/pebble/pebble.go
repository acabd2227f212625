// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pebble

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/cockroachdb/pebble"
)

const errUnboundedRange = common.ConstError("range deletion requires an upper bound")

// Store is a backend.KeyValueStore backed by a Pebble instance. Range
// deletions are forwarded to Pebble's native range tombstones.
type Store struct {
	db *pebble.DB
}

// Open opens or creates a Pebble instance in the given directory. A nil
// options value selects Pebble's defaults.
func Open(path string, options *pebble.Options) (*Store, error) {
	db, err := pebble.Open(path, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open Pebble in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	return get(s.db, key)
}

func (s *Store) NewIterator(start, limit []byte) backend.Iterator {
	return newIterator(s.db, start, limit)
}

func (s *Store) NewBatch() backend.Batch {
	return &batch{batch: s.db.NewBatch()}
}

func (s *Store) GetSnapshot() (backend.Snapshot, error) {
	return &snapshot{s.db.NewSnapshot()}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// reader is the read interface shared by Pebble instances and snapshots.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func get(r reader, key []byte) ([]byte, error) {
	data, closer, err := r.Get(key)
	if err != nil {
		return nil, convertError(err)
	}
	res := bytes.Clone(data)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	if res == nil {
		res = []byte{}
	}
	return res, nil
}

func convertError(err error) error {
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return backend.ErrNotFound
	case errors.Is(err, pebble.ErrClosed):
		return backend.ErrClosed
	}
	return err
}

type snapshot struct {
	snapshot *pebble.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	return get(s.snapshot, key)
}

func (s *snapshot) NewIterator(start, limit []byte) backend.Iterator {
	return newIterator(s.snapshot, start, limit)
}

func (s *snapshot) Release() {
	s.snapshot.Close()
}

// iterator adapts Pebble's positioned iterators to the backend.Iterator
// contract of starting before the first element.
type iterator struct {
	iter  *pebble.Iterator
	moved bool
	err   error
}

func newIterator(r reader, start, limit []byte) *iterator {
	iter, err := r.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: limit})
	if err != nil {
		return &iterator{err: convertError(err), moved: true}
	}
	return &iterator{iter: iter}
}

func (i *iterator) Next() bool {
	if i.iter == nil {
		return false
	}
	if !i.moved {
		i.moved = true
		return i.iter.First()
	}
	return i.iter.Next()
}

func (i *iterator) Seek(key []byte) bool {
	if i.iter == nil {
		return false
	}
	i.moved = true
	return i.iter.SeekGE(key)
}

func (i *iterator) Key() []byte {
	if i.iter == nil || !i.moved || !i.iter.Valid() {
		return nil
	}
	return i.iter.Key()
}

func (i *iterator) Value() []byte {
	if i.iter == nil || !i.moved || !i.iter.Valid() {
		return nil
	}
	return i.iter.Value()
}

func (i *iterator) Error() error {
	if i.err != nil {
		return i.err
	}
	if i.iter == nil {
		return nil
	}
	if err := i.iter.Error(); err != nil {
		return convertError(err)
	}
	return nil
}

func (i *iterator) Release() {
	if i.iter != nil {
		if err := i.iter.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.iter = nil
	}
}

type batch struct {
	batch *pebble.Batch
	count int
}

func (b *batch) Put(key, value []byte) error {
	b.count++
	return b.batch.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	b.count++
	return b.batch.Delete(key, nil)
}

func (b *batch) DeleteRange(start, limit []byte) error {
	if limit == nil {
		return errUnboundedRange
	}
	b.count++
	return b.batch.DeleteRange(start, limit, nil)
}

func (b *batch) Len() int {
	return b.count
}

func (b *batch) Write() error {
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return convertError(err)
	}
	b.batch.Reset()
	b.count = 0
	return nil
}
