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
	"fmt"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/common/interrupt"
	"github.com/Fantom-foundation/substatedb/database/sdb"
	"github.com/Fantom-foundation/substatedb/database/statetree"
	"github.com/Fantom-foundation/substatedb/state"
)

// snapshot is a read-only view on a backend snapshot. Tree nodes are read
// without cache since nodes collected after the creation of the snapshot
// are only retained by the backend snapshot.
type snapshot struct {
	*sdb.Store
	snapshot backend.Snapshot
	nodes    statetree.ReadableTreeStore
	meta     metadata
}

func (s *snapshot) GetCurrentVersion() common.Version {
	return s.meta.Version
}

func (s *snapshot) GetCurrentRootHash() common.Hash {
	return s.meta.RootHash
}

func (s *snapshot) GetSubstateLeaf(address common.SubstateAddress) (*statetree.LeafNode, error) {
	return statetree.GetSubstateLeaf(s.nodes, s.meta.RootVersion, address)
}

func (s *snapshot) GetPartitionTierHash(node common.NodeId) (common.Hash, bool, error) {
	return statetree.PartitionTierHash(s.nodes, s.meta.RootVersion, node)
}

func (s *snapshot) Verify(ctx context.Context) error {
	stored, err := statetree.GetRootHash(s.nodes, s.meta.RootVersion)
	if err != nil {
		return err
	}
	if stored != s.meta.RootHash {
		return fmt.Errorf("%w: state tree hashes to %v, committed root is %v", ErrVerificationFailed, stored, s.meta.RootHash)
	}

	content := state.NewStateUpdates()
	err = sdb.VisitSubstates(s, func(address common.SubstateAddress, value []byte) error {
		if interrupt.IsCancelled(ctx) {
			return interrupt.ErrCanceled
		}
		content.Upsert(address, value)
		return nil
	})
	if err != nil {
		return err
	}
	computed, err := statetree.ComputeRootHash(content)
	if err != nil {
		return err
	}
	if computed != s.meta.RootHash {
		return fmt.Errorf("%w: substates hash to %v, committed root is %v", ErrVerificationFailed, computed, s.meta.RootHash)
	}
	return nil
}

func (s *snapshot) Release() {
	s.snapshot.Release()
}
