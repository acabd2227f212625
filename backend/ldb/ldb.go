// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store is a backend.KeyValueStore backed by a LevelDB instance.
//
// LevelDB lacks native range deletions; DeleteRange operations of a batch
// are emulated by enumerating the covered keys when the batch is written.
// Since enumeration and write are not atomic against other writers, a Store
// must only be written by a single writer at a time.
type Store struct {
	db *leveldb.DB
}

// Open opens or creates a LevelDB instance in the given directory.
func Open(path string, options *opt.Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	return get(s.db, key)
}

func (s *Store) NewIterator(start, limit []byte) backend.Iterator {
	return &ldbIterator{s.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil)}
}

func (s *Store) NewBatch() backend.Batch {
	return &batch{db: s.db}
}

func (s *Store) GetSnapshot() (backend.Snapshot, error) {
	snapshot, err := s.db.GetSnapshot()
	if err != nil {
		return nil, convertError(err)
	}
	return &ldbSnapshot{snapshot}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// reader is the read interface shared by LevelDB instances and snapshots.
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

func get(r reader, key []byte) ([]byte, error) {
	res, err := r.Get(key, nil)
	if err != nil {
		return nil, convertError(err)
	}
	return res, nil
}

func convertError(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return backend.ErrNotFound
	case errors.Is(err, leveldb.ErrClosed), errors.Is(err, leveldb.ErrSnapshotReleased):
		return backend.ErrClosed
	}
	return err
}

type ldbSnapshot struct {
	snapshot *leveldb.Snapshot
}

func (s *ldbSnapshot) Get(key []byte) ([]byte, error) {
	return get(s.snapshot, key)
}

func (s *ldbSnapshot) NewIterator(start, limit []byte) backend.Iterator {
	return &ldbIterator{s.snapshot.NewIterator(&util.Range{Start: start, Limit: limit}, nil)}
}

func (s *ldbSnapshot) Release() {
	s.snapshot.Release()
}

type ldbIterator struct {
	iterator.Iterator
}

func (i *ldbIterator) Error() error {
	if err := i.Iterator.Error(); err != nil {
		return convertError(err)
	}
	return nil
}

type opKind byte

const (
	opPut opKind = iota
	opDelete
	opDeleteRange
)

type operation struct {
	kind       opKind
	key, value []byte
	limit      []byte
}

type batch struct {
	db    *leveldb.DB
	batch leveldb.Batch
	ops   []operation
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, operation{kind: opPut, key: clone(key), value: clone(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, operation{kind: opDelete, key: clone(key)})
	return nil
}

func (b *batch) DeleteRange(start, limit []byte) error {
	b.ops = append(b.ops, operation{kind: opDeleteRange, key: clone(start), limit: clone(limit)})
	return nil
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Write() error {
	b.batch.Reset()
	for _, op := range b.ops {
		switch op.kind {
		case opPut:
			b.batch.Put(op.key, op.value)
		case opDelete:
			b.batch.Delete(op.key)
		case opDeleteRange:
			if err := b.expandRange(&util.Range{Start: op.key, Limit: op.limit}); err != nil {
				return err
			}
		}
	}
	if err := b.db.Write(&b.batch, nil); err != nil {
		return convertError(err)
	}
	b.batch.Reset()
	b.ops = b.ops[:0]
	return nil
}

// expandRange records a deletion for every key in the given range. This
// covers keys present in the DB as well as keys put earlier in this batch.
func (b *batch) expandRange(rng *util.Range) error {
	iter := b.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		b.batch.Delete(clone(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to enumerate deleted range: %w", convertError(err))
	}

	var pending pendingKeys
	if err := b.batch.Replay(&pending); err != nil {
		return err
	}
	for _, key := range pending {
		if inRange(rng, key) {
			b.batch.Delete(key)
		}
	}
	return nil
}

// pendingKeys collects the keys of puts recorded in a LevelDB batch.
type pendingKeys [][]byte

func (p *pendingKeys) Put(key, _ []byte) {
	*p = append(*p, clone(key))
}

func (p *pendingKeys) Delete([]byte) {}

func inRange(r *util.Range, key []byte) bool {
	if r.Start != nil && bytes.Compare(key, r.Start) < 0 {
		return false
	}
	if r.Limit != nil && bytes.Compare(key, r.Limit) >= 0 {
		return false
	}
	return true
}

func clone(data []byte) []byte {
	if data == nil {
		return nil
	}
	return bytes.Clone(data)
}
