// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/google/btree"
)

const btreeDegree = 32

type entry struct {
	key, value []byte
}

func entryLess(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Store is an in-memory backend.KeyValueStore implementation based on a
// copy-on-write B-tree. Snapshots are O(1) clones of the tree.
type Store struct {
	mutex  sync.RWMutex
	tree   *btree.BTreeG[entry]
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{tree: btree.NewG[entry](btreeDegree, entryLess)}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return nil, backend.ErrClosed
	}
	return get(s.tree, key)
}

func (s *Store) NewIterator(start, limit []byte) backend.Iterator {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return &iterator{err: backend.ErrClosed, pos: -1}
	}
	return newIterator(s.tree, start, limit)
}

func (s *Store) NewBatch() backend.Batch {
	return &batch{store: s}
}

func (s *Store) GetSnapshot() (backend.Snapshot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, backend.ErrClosed
	}
	return &snapshot{tree: s.tree.Clone()}, nil
}

func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	s.tree = btree.NewG[entry](btreeDegree, entryLess)
	return nil
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.tree.Len()
}

func get(tree *btree.BTreeG[entry], key []byte) ([]byte, error) {
	res, found := tree.Get(entry{key: key})
	if !found {
		return nil, backend.ErrNotFound
	}
	return bytes.Clone(res.value), nil
}

type snapshot struct {
	tree *btree.BTreeG[entry]
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	if s.tree == nil {
		return nil, backend.ErrClosed
	}
	return get(s.tree, key)
}

func (s *snapshot) NewIterator(start, limit []byte) backend.Iterator {
	if s.tree == nil {
		return &iterator{err: backend.ErrClosed, pos: -1}
	}
	return newIterator(s.tree, start, limit)
}

func (s *snapshot) Release() {
	s.tree = nil
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
	store *Store
	ops   []operation
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, operation{kind: opPut, key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, operation{kind: opDelete, key: bytes.Clone(key)})
	return nil
}

func (b *batch) DeleteRange(start, limit []byte) error {
	b.ops = append(b.ops, operation{kind: opDeleteRange, key: bytes.Clone(start), limit: bytes.Clone(limit)})
	return nil
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Write() error {
	b.store.mutex.Lock()
	defer b.store.mutex.Unlock()
	if b.store.closed {
		return backend.ErrClosed
	}
	tree := b.store.tree
	for _, op := range b.ops {
		switch op.kind {
		case opPut:
			tree.ReplaceOrInsert(entry{key: op.key, value: op.value})
		case opDelete:
			tree.Delete(entry{key: op.key})
		case opDeleteRange:
			var victims []entry
			visit := func(e entry) bool {
				victims = append(victims, e)
				return true
			}
			if op.limit == nil {
				tree.AscendGreaterOrEqual(entry{key: op.key}, visit)
			} else {
				tree.AscendRange(entry{key: op.key}, entry{key: op.limit}, visit)
			}
			for _, victim := range victims {
				tree.Delete(victim)
			}
		}
	}
	b.ops = b.ops[:0]
	return nil
}

// iterator iterates over entries collected eagerly on creation, which makes
// it immune to concurrent modifications of the store.
type iterator struct {
	entries []entry
	pos     int
	err     error
}

func newIterator(tree *btree.BTreeG[entry], start, limit []byte) *iterator {
	res := &iterator{pos: -1}
	visit := func(e entry) bool {
		res.entries = append(res.entries, e)
		return true
	}
	switch {
	case start == nil && limit == nil:
		tree.Ascend(visit)
	case limit == nil:
		tree.AscendGreaterOrEqual(entry{key: start}, visit)
	case start == nil:
		tree.AscendLessThan(entry{key: limit}, visit)
	default:
		tree.AscendRange(entry{key: start}, entry{key: limit}, visit)
	}
	return res
}

func (i *iterator) Next() bool {
	if i.pos < len(i.entries) {
		i.pos++
	}
	return i.pos < len(i.entries)
}

func (i *iterator) Seek(key []byte) bool {
	i.pos = sort.Search(len(i.entries), func(j int) bool {
		return bytes.Compare(i.entries[j].key, key) >= 0
	})
	return i.pos < len(i.entries)
}

func (i *iterator) Key() []byte {
	if i.pos < 0 || i.pos >= len(i.entries) {
		return nil
	}
	return i.entries[i.pos].key
}

func (i *iterator) Value() []byte {
	if i.pos < 0 || i.pos >= len(i.entries) {
		return nil
	}
	return i.entries[i.pos].value
}

func (i *iterator) Error() error {
	return i.err
}

func (i *iterator) Release() {
	i.entries = nil
	i.pos = 0
}
