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
	"fmt"

	"github.com/Fantom-foundation/substatedb/common"
)

const (
	// ErrNotFound is reported if a substate to be locked does not exist.
	ErrNotFound = common.ConstError("substate not found")
	// ErrSubstateLocked is reported if a lock conflicts with a lock held on the same substate.
	ErrSubstateLocked = common.ConstError("substate locked")
	// ErrLockUnmodifiedBaseOnNewSubstate is reported if an unmodified base is
	// requested for a substate created in the current transaction.
	ErrLockUnmodifiedBaseOnNewSubstate = common.ConstError("unmodified base requested for new substate")
	// ErrLockUnmodifiedBaseOnUpdatedSubstate is reported if an unmodified base
	// is requested for a substate already updated in the current transaction.
	ErrLockUnmodifiedBaseOnUpdatedSubstate = common.ConstError("unmodified base requested for updated substate")
)

// TrackError is the error type of failed lock acquisitions. Its Kind is one
// of the error constants above and can be tested using errors.Is.
type TrackError struct {
	Kind    common.ConstError
	Address common.SubstateAddress
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Address)
}

func (e *TrackError) Unwrap() error {
	return e.Kind
}

func newTrackError(kind common.ConstError, address common.SubstateAddress) error {
	return &TrackError{Kind: kind, Address: address}
}
