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
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/state"
)

// ComputeRootHash builds a fresh tree containing the upserts of the given
// updates in memory and returns its root hash. It is intended for audits
// comparing the content of the substate database with a committed root.
func ComputeRootHash(substates *state.StateUpdates) (common.Hash, error) {
	res, err := Update(NewMemoryTreeStore(), nil, 1, substates)
	if err != nil {
		return common.Hash{}, err
	}
	return res.RootHash, nil
}
