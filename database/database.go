// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"context"

	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/database/sdb"
	"github.com/Fantom-foundation/substatedb/database/statetree"
	"github.com/Fantom-foundation/substatedb/state"
)

// ErrClosed is returned by operations on closed databases.
const ErrClosed = common.ConstError("database closed")

// ErrVerificationFailed is returned if the content of a database does not
// match its committed root hash.
const ErrVerificationFailed = common.ConstError("verification failed")

// Reader is the read interface of a committed state of a database.
type Reader interface {
	sdb.SubstateReader

	// GetCurrentVersion returns the version of the committed state. Version
	// 0 is the empty state before the first commit.
	GetCurrentVersion() common.Version

	// GetCurrentRootHash returns the root hash of the state tree of the
	// committed state.
	GetCurrentRootHash() common.Hash
}

// Snapshot is an immutable view on a committed state of a database. It is
// not affected by later commits and must be released after use.
type Snapshot interface {
	Reader

	// GetSubstateLeaf locates the state tree leaf of the given substate.
	// The result is nil if the substate does not exist.
	GetSubstateLeaf(address common.SubstateAddress) (*statetree.LeafNode, error)

	// GetPartitionTierHash returns the hash summarizing all substates of
	// the given entity.
	GetPartitionTierHash(node common.NodeId) (common.Hash, bool, error)

	// Verify recomputes the root hash from the substates of this snapshot
	// and compares it with the committed root hash. The verification stops
	// early if the given context is canceled.
	Verify(ctx context.Context) error

	Release()
}

// Database is a substate database paired with a versioned state tree
// committing to its content. Reads may be performed concurrently with
// commits; commits are serialized.
type Database interface {
	Reader

	// Commit applies the given updates to the database, creating a new
	// version. Errors are fatal; once a commit failed, all later commits
	// fail with the same error.
	Commit(updates *state.StateUpdates) error

	// GetSnapshot creates a snapshot of the current state.
	GetSnapshot() (Snapshot, error)

	// BeginTransaction creates a new transaction scoped lock manager reading
	// from this database.
	BeginTransaction() *state.Track

	// GetStaleParts returns the tree parts that have become stale when
	// committing the given version and have not been collected yet.
	GetStaleParts(version common.Version) ([]statetree.StalePart, error)

	// CollectGarbage deletes the tree nodes that became stale at versions
	// up to the given version. Tree nodes of versions older than the given
	// version are no longer accessible afterwards.
	CollectGarbage(upTo common.Version) error

	// GetMemoryFootprint computes an approximation of the memory used by
	// this database.
	GetMemoryFootprint() *common.MemoryFootprint

	// Close releases all resources of this database.
	Close() error
}
