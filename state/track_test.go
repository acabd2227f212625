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
	"errors"
	"reflect"
	"testing"

	"github.com/Fantom-foundation/substatedb/common"
	"go.uber.org/mock/gomock"
)

var (
	addrA = common.NewAddress(common.NodeId{1}, 1, "a")
	addrB = common.NewAddress(common.NodeId{1}, 1, "b")
	addrC = common.NewAddress(common.NodeId{1}, 2, "c")
)

// newTrackWith creates a track over a mocked reader providing the given
// substates, all reported as loaded from the given version.
func newTrackWith(t *testing.T, version common.Version, substates map[common.SubstateAddress][]byte) *Track {
	ctrl := gomock.NewController(t)
	reader := NewMockSubstateReader(ctrl)
	reader.EXPECT().GetSubstate(gomock.Any()).DoAndReturn(func(address common.SubstateAddress) ([]byte, bool, error) {
		value, found := substates[address]
		return value, found, nil
	}).AnyTimes()
	reader.EXPECT().GetCurrentVersion().Return(version).AnyTimes()
	return NewTrack(reader)
}

func mustLock(t *testing.T, track *Track, address common.SubstateAddress, flags LockFlags) LockHandle {
	t.Helper()
	handle, err := track.AcquireLock(address, flags)
	if err != nil {
		t.Fatalf("failed to lock %v with %v: %v", address, flags, err)
	}
	return handle
}

func expectPanic(t *testing.T, name string, action func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s should have panicked", name)
		}
	}()
	action()
}

func TestTrack_LockOfMissingSubstateFailsWithNotFound(t *testing.T) {
	track := newTrackWith(t, 0, nil)
	_, err := track.AcquireLock(addrA, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrNotFound, err)
	}
	var trackErr *TrackError
	if !errors.As(err, &trackErr) || trackErr.Address != addrA {
		t.Errorf("error should name the missing address, got %v", err)
	}
	if got, want := track.NumLoaded(), 0; got != want {
		t.Errorf("missing substates should not be cached, wanted %d, got %d", want, got)
	}
}

func TestTrack_ReaderErrorsArePropagated(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := NewMockSubstateReader(ctrl)
	injected := errors.New("injected error")
	reader.EXPECT().GetSubstate(addrA).Return(nil, false, injected)

	track := NewTrack(reader)
	_, err := track.AcquireLock(addrA, Mutable)
	if !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
	var trackErr *TrackError
	if errors.As(err, &trackErr) {
		t.Errorf("I/O errors should not be reported as track errors")
	}
}

func TestTrack_SubstatesAreLoadedOnlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := NewMockSubstateReader(ctrl)
	reader.EXPECT().GetSubstate(addrA).Return([]byte{1}, true, nil).Times(1)
	reader.EXPECT().GetCurrentVersion().Return(common.Version(3)).Times(1)

	track := NewTrack(reader)
	for i := 0; i < 3; i++ {
		handle := mustLock(t, track, addrA, 0)
		track.ReleaseLock(handle)
	}
}

func TestTrack_LockStateTransitions(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})

	read1 := mustLock(t, track, addrA, 0)
	read2 := mustLock(t, track, addrA, 0)

	if _, err := track.AcquireLock(addrA, Mutable); !errors.Is(err, ErrSubstateLocked) {
		t.Errorf("write lock on read-locked substate should fail, got %v", err)
	}

	track.ReleaseLock(read1)
	if _, err := track.AcquireLock(addrA, Mutable); !errors.Is(err, ErrSubstateLocked) {
		t.Errorf("write lock on substate with remaining reader should fail, got %v", err)
	}

	track.ReleaseLock(read2)
	write := mustLock(t, track, addrA, Mutable)

	if _, err := track.AcquireLock(addrA, 0); !errors.Is(err, ErrSubstateLocked) {
		t.Errorf("read lock on write-locked substate should fail, got %v", err)
	}
	if _, err := track.AcquireLock(addrA, Mutable); !errors.Is(err, ErrSubstateLocked) {
		t.Errorf("write lock on write-locked substate should fail, got %v", err)
	}

	track.ReleaseLock(write)
	track.ReleaseLock(mustLock(t, track, addrA, 0))
	if got, want := track.NumLocks(), 0; got != want {
		t.Errorf("unexpected number of locks, wanted %d, got %d", want, got)
	}
}

func TestTrack_UnmodifiedBaseIsCheckedAgainstMetaState(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})

	// loaded substates provide an unmodified base
	handle := mustLock(t, track, addrA, Mutable|UnmodifiedBase)
	track.WriteSubstate(handle, []byte{2})
	track.ReleaseLock(handle)

	if _, err := track.AcquireLock(addrA, UnmodifiedBase); !errors.Is(err, ErrLockUnmodifiedBaseOnUpdatedSubstate) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrLockUnmodifiedBaseOnUpdatedSubstate, err)
	}

	track.InsertSubstate(addrB, []byte{1})
	if _, err := track.AcquireLock(addrB, Mutable|UnmodifiedBase); !errors.Is(err, ErrLockUnmodifiedBaseOnNewSubstate) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrLockUnmodifiedBaseOnNewSubstate, err)
	}
}

func TestTrack_ReadOnlyLocksDoNotMarkSubstatesAsUpdated(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})
	track.ReleaseLock(mustLock(t, track, addrA, 0))
	track.ReleaseLock(mustLock(t, track, addrA, UnmodifiedBase))
}

func TestTrack_ReadAndWriteThroughHandles(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})

	handle := mustLock(t, track, addrA, Mutable)
	if got, want := track.ReadSubstate(handle), []byte{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
	track.WriteSubstate(handle, []byte{2})
	if got, want := track.ReadSubstate(handle), []byte{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)

	handle = mustLock(t, track, addrA, 0)
	if got, want := track.ReadSubstate(handle), []byte{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)
}

func TestTrack_ContractViolationsPanic(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})

	expectPanic(t, "release of unknown handle", func() { track.ReleaseLock(42) })
	expectPanic(t, "read of unknown handle", func() { track.ReadSubstate(42) })

	handle := mustLock(t, track, addrA, 0)
	expectPanic(t, "write through read-only lock", func() { track.WriteSubstate(handle, []byte{2}) })
	expectPanic(t, "delete through read-only lock", func() { track.DeleteSubstate(handle) })
	expectPanic(t, "finalize with held lock", func() { track.Finalize() })
	expectPanic(t, "revert with held lock", func() { track.RevertNonForceWriteChanges() })
	expectPanic(t, "delete of partition with locked substate", func() { track.DeletePartition(addrA.Node, addrA.Partition) })
	track.ReleaseLock(handle)
	expectPanic(t, "double release", func() { track.ReleaseLock(handle) })

	expectPanic(t, "insert of existing substate", func() { track.InsertSubstate(addrA, []byte{3}) })
}

func TestTrack_DeletedSubstatesCanNotBeLockedButReinserted(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})

	handle := mustLock(t, track, addrA, Mutable)
	track.DeleteSubstate(handle)
	if got := track.ReadSubstate(handle); got != nil {
		t.Errorf("deleted substate should read as nil, got %v", got)
	}
	track.ReleaseLock(handle)

	if _, err := track.AcquireLock(addrA, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted substate should not be found, got %v", err)
	}

	track.InsertSubstate(addrA, []byte{5})
	updates, versions := track.Finalize()

	want := NewStateUpdates()
	want.Upsert(addrA, []byte{5})
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
	if got, want := versions, map[common.SubstateAddress]common.Version{addrA: 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected versions, wanted %v, got %v", want, got)
	}
}

func TestTrack_FinalizeProducesMinimalDiff(t *testing.T) {
	track := newTrackWith(t, 7, map[common.SubstateAddress][]byte{
		addrA: {1},
		addrB: {2},
		addrC: {3},
	})

	// read only
	track.ReleaseLock(mustLock(t, track, addrA, 0))

	// updated
	handle := mustLock(t, track, addrB, Mutable)
	track.WriteSubstate(handle, []byte{20})
	track.ReleaseLock(handle)

	// deleted
	handle = mustLock(t, track, addrC, Mutable)
	track.DeleteSubstate(handle)
	track.ReleaseLock(handle)

	// new
	addrD := common.NewAddress(common.NodeId{2}, 0, "d")
	track.InsertSubstate(addrD, []byte{4})

	// new and deleted again
	addrE := common.NewAddress(common.NodeId{2}, 0, "e")
	track.InsertSubstate(addrE, []byte{5})
	handle = mustLock(t, track, addrE, Mutable)
	track.DeleteSubstate(handle)
	track.ReleaseLock(handle)

	updates, versions := track.Finalize()

	want := NewStateUpdates()
	want.Upsert(addrB, []byte{20})
	want.Delete(addrC)
	want.Upsert(addrD, []byte{4})
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
	wantVersions := map[common.SubstateAddress]common.Version{addrB: 7, addrC: 7}
	if !reflect.DeepEqual(versions, wantVersions) {
		t.Errorf("unexpected versions, wanted %v, got %v", wantVersions, versions)
	}
	if got, want := track.NumLoaded(), 0; got != want {
		t.Errorf("finalized track should be empty, got %d substates", got)
	}
}

func TestTrack_RevertKeepsOnlyForceWrites(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{
		addrA: {1},
		addrB: {2},
	})

	// regular update
	handle := mustLock(t, track, addrA, Mutable)
	track.WriteSubstate(handle, []byte{10})
	track.ReleaseLock(handle)

	// forced update followed by a regular one
	handle = mustLock(t, track, addrB, Mutable|ForceWrite)
	track.WriteSubstate(handle, []byte{20})
	track.ReleaseLock(handle)
	handle = mustLock(t, track, addrB, Mutable)
	track.WriteSubstate(handle, []byte{21})
	track.ReleaseLock(handle)

	// new substate
	track.InsertSubstate(addrC, []byte{3})

	track.RevertNonForceWriteChanges()

	handle = mustLock(t, track, addrA, UnmodifiedBase)
	if got, want := track.ReadSubstate(handle), []byte{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("regular update should be reverted, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)

	handle = mustLock(t, track, addrB, 0)
	if got, want := track.ReadSubstate(handle), []byte{20}; !reflect.DeepEqual(got, want) {
		t.Errorf("force write should survive revert, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)

	if _, err := track.AcquireLock(addrC, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("new substate should be dropped by revert, got %v", err)
	}

	updates, _ := track.Finalize()
	want := NewStateUpdates()
	want.Upsert(addrB, []byte{20})
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
}

func TestTrack_ForceWriteWithoutModificationIsReportedAsUpdate(t *testing.T) {
	track := newTrackWith(t, 4, map[common.SubstateAddress][]byte{addrA: {1}})
	track.ReleaseLock(mustLock(t, track, addrA, Mutable|ForceWrite))
	track.RevertNonForceWriteChanges()

	updates, versions := track.Finalize()
	want := NewStateUpdates()
	want.Upsert(addrA, []byte{1})
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
	if got, want := versions[addrA], common.Version(4); got != want {
		t.Errorf("unexpected version, wanted %d, got %d", want, got)
	}
}

func TestTrack_ForceWriteOnNewSubstateIsIgnored(t *testing.T) {
	track := newTrackWith(t, 1, nil)
	track.InsertSubstate(addrA, []byte{1})
	handle := mustLock(t, track, addrA, Mutable|ForceWrite)
	track.WriteSubstate(handle, []byte{2})
	track.ReleaseLock(handle)

	track.RevertNonForceWriteChanges()
	if _, err := track.AcquireLock(addrA, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("new substate should be dropped by revert, got %v", err)
	}
}

func TestTrack_DeletedPartitionIsResetAndNotLoaded(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := NewMockSubstateReader(ctrl)
	reader.EXPECT().GetSubstate(addrA).Return([]byte{1}, true, nil)
	reader.EXPECT().GetCurrentVersion().Return(common.Version(1))

	track := NewTrack(reader)
	track.ReleaseLock(mustLock(t, track, addrA, 0))
	track.DeletePartition(addrA.Node, addrA.Partition)

	// no further reads of the partition reach the reader
	if _, err := track.AcquireLock(addrA, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("substate of deleted partition should not be found, got %v", err)
	}
	if _, err := track.AcquireLock(addrB, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("substate of deleted partition should not be found, got %v", err)
	}

	track.InsertSubstate(addrB, []byte{2})
	updates, _ := track.Finalize()

	want := NewStateUpdates()
	want.ResetPartition(addrA.Node, addrA.Partition)
	want.Upsert(addrB, []byte{2})
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
}

func TestTrack_RevertForgetsDeletedPartitions(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})
	track.DeletePartition(addrA.Node, addrA.Partition)
	track.InsertSubstate(addrB, []byte{2})
	track.RevertNonForceWriteChanges()

	handle := mustLock(t, track, addrA, 0)
	if got, want := track.ReadSubstate(handle), []byte{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)

	if updates, _ := track.Finalize(); !updates.IsEmpty() {
		t.Errorf("reverted track should produce an empty update, got %v", updates)
	}
}

func TestTrack_ForceWritesSurviveRevertOfPartitionDeletion(t *testing.T) {
	track := newTrackWith(t, 3, map[common.SubstateAddress][]byte{
		addrA: {1},
		addrB: {2},
	})
	handle := mustLock(t, track, addrA, Mutable|ForceWrite)
	track.WriteSubstate(handle, []byte{9})
	track.ReleaseLock(handle)
	handle = mustLock(t, track, addrB, Mutable)
	track.WriteSubstate(handle, []byte{8})
	track.ReleaseLock(handle)

	track.DeletePartition(addrA.Node, addrA.Partition)
	track.InsertSubstate(addrA, []byte{7})
	track.RevertNonForceWriteChanges()

	handle = mustLock(t, track, addrA, 0)
	if got, want := track.ReadSubstate(handle), []byte{9}; !reflect.DeepEqual(got, want) {
		t.Errorf("force write should survive revert, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)
	handle = mustLock(t, track, addrB, 0)
	if got, want := track.ReadSubstate(handle), []byte{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("regular update should be reverted, wanted %v, got %v", want, got)
	}
	track.ReleaseLock(handle)

	updates, versions := track.Finalize()
	want := NewStateUpdates()
	want.Upsert(addrA, []byte{9})
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
	if got, want := versions[addrA], common.Version(3); got != want {
		t.Errorf("unexpected version, wanted %d, got %d", want, got)
	}
}

func TestTrack_FinalizeDropsForceWritesOfDeletedPartitions(t *testing.T) {
	track := newTrackWith(t, 1, map[common.SubstateAddress][]byte{addrA: {1}})
	handle := mustLock(t, track, addrA, Mutable|ForceWrite)
	track.WriteSubstate(handle, []byte{9})
	track.ReleaseLock(handle)
	track.DeletePartition(addrA.Node, addrA.Partition)

	updates, _ := track.Finalize()
	want := NewStateUpdates()
	want.ResetPartition(addrA.Node, addrA.Partition)
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("unexpected updates, wanted %v, got %v", want.partitions, updates.partitions)
	}
	if got := track.NumLoaded(); got != 0 {
		t.Errorf("finalized track should be empty, got %d substates", got)
	}
}

func TestLockFlags_String(t *testing.T) {
	tests := map[LockFlags]string{
		0:                           "ReadOnly",
		Mutable:                     "Mutable",
		Mutable | UnmodifiedBase:    "Mutable|UnmodifiedBase",
		Mutable | ForceWrite:        "Mutable|ForceWrite",
		UnmodifiedBase | ForceWrite: "UnmodifiedBase|ForceWrite",
	}
	for flags, want := range tests {
		if got := flags.String(); got != want {
			t.Errorf("unexpected string for %d, wanted %s, got %s", flags, want, got)
		}
	}
}
