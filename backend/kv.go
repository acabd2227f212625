// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

//go:generate mockgen -source kv.go -destination kv_mocks.go -package backend

import (
	"io"

	"github.com/Fantom-foundation/substatedb/common"
)

// ErrNotFound is returned by Get operations if the requested key is absent.
const ErrNotFound = common.ConstError("key not found")

// ErrClosed is returned by operations on a closed key-value store.
const ErrClosed = common.ConstError("key-value store closed")

// KeyValueReader provides read access to an ordered key-value engine or to a
// consistent snapshot of one.
type KeyValueReader interface {
	// Get retrieves the value for the given key. It returns ErrNotFound if
	// the key is not present. The returned slice is owned by the caller.
	Get(key []byte) ([]byte, error)

	// NewIterator creates an iterator over all keys in the range
	// [start, limit) in ascending byte order. A nil start denotes the first
	// key, a nil limit denotes a key after all keys. The iterator must be
	// released after use.
	NewIterator(start, limit []byte) Iterator
}

// Iterator iterates over an ordered range of key-value pairs. It is initially
// positioned before the first element; Next has to be called to reach it.
// Slices returned by Key and Value are only valid until the next movement of
// the iterator and must not be modified.
type Iterator interface {
	// Next moves the iterator to the next pair and reports whether it exists.
	Next() bool

	// Seek moves the iterator to the first pair with a key >= the given key
	// and reports whether it exists. A subsequent Next moves past this pair.
	Seek(key []byte) bool

	Key() []byte
	Value() []byte

	// Error returns any accumulated error. Exhausting all pairs is not an error.
	Error() error

	// Release frees all resources associated to the iterator.
	Release()
}

// Batch collects write operations to be applied atomically. Operations are
// applied in the order they have been recorded.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error

	// DeleteRange deletes all keys in the range [start, limit).
	DeleteRange(start, limit []byte) error

	// Len returns the number of recorded operations.
	Len() int

	// Write atomically applies all recorded operations to the store.
	Write() error
}

// Snapshot is a frozen view of a key-value store at a point in time.
type Snapshot interface {
	KeyValueReader

	// Release frees the snapshot. It must be called exactly once.
	Release()
}

// KeyValueStore is an ordered key-value engine supporting atomic batches and
// consistent snapshots. Readers may run concurrently with a single writer.
type KeyValueStore interface {
	KeyValueReader

	// NewBatch creates an empty write batch for this store.
	NewBatch() Batch

	// GetSnapshot returns a consistent read-only view of the current content.
	GetSnapshot() (Snapshot, error)

	io.Closer
}
