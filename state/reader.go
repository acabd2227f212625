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

//go:generate mockgen -source reader.go -destination reader_mocks.go -package state

import "github.com/Fantom-foundation/substatedb/common"

// SubstateReader provides the committed state a Track loads substates from.
type SubstateReader interface {
	// GetSubstate retrieves the value of the given substate. The boolean
	// result is false if the substate does not exist.
	GetSubstate(address common.SubstateAddress) ([]byte, bool, error)

	// GetCurrentVersion returns the version of the state values are read from.
	GetCurrentVersion() common.Version
}
