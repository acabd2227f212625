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
	"strings"

	"github.com/Fantom-foundation/substatedb/common"
)

// LockFlags control the access granted by a substate lock.
type LockFlags uint8

const (
	// Mutable requests write access to the substate.
	Mutable LockFlags = 1 << iota
	// UnmodifiedBase requires the substate to be unmodified since it has
	// been loaded from the database in the current transaction.
	UnmodifiedBase
	// ForceWrite makes a release of the lock count as an update of the
	// substate that survives RevertNonForceWriteChanges.
	ForceWrite
)

// Contains is true if all flags of o are set in f.
func (f LockFlags) Contains(o LockFlags) bool {
	return f&o == o
}

func (f LockFlags) String() string {
	var names []string
	if f.Contains(Mutable) {
		names = append(names, "Mutable")
	}
	if f.Contains(UnmodifiedBase) {
		names = append(names, "UnmodifiedBase")
	}
	if f.Contains(ForceWrite) {
		names = append(names, "ForceWrite")
	}
	if len(names) == 0 {
		return "ReadOnly"
	}
	return strings.Join(names, "|")
}

// LockHandle identifies a lock held on a substate within a Track.
type LockHandle uint32

// lockState is either Read(readers) or Write. Read(0) is the unlocked state.
type lockState struct {
	readers uint32
	write   bool
}

func (s lockState) isLocked() bool {
	return s.write || s.readers > 0
}

type metaState uint8

const (
	// metaNew marks substates inserted in this transaction.
	metaNew metaState = iota
	// metaLoaded marks existing substates that have not been written.
	metaLoaded
	// metaUpdated marks existing substates that have been written.
	metaUpdated
)

// loadedSubstate is the transaction-local cache entry of a substate. A nil
// value denotes a deleted substate; present values are never nil.
type loadedSubstate struct {
	value []byte
	lock  lockState
	meta  metaState

	// only used for existing substates
	oldVersion common.Version
	original   []byte

	// set if the substate has been force-written; snapshot is the value at
	// the time the last force-writing lock was released
	forced   bool
	snapshot []byte
}

type heldLock struct {
	address common.SubstateAddress
	flags   LockFlags
}

// Track is the transaction-scoped working set of substates. It loads
// substates from a SubstateReader on first access, guards them against
// conflicting accesses from nested call frames of the same transaction and
// collects all modifications until the transaction is finalized.
//
// A Track is not safe for concurrent use. Its locks are reentrancy guards
// and never block; conflicts are reported immediately as errors.
type Track struct {
	reader            SubstateReader
	substates         map[common.SubstateAddress]*loadedSubstate
	deletedPartitions map[common.PartitionKey]struct{}
	// forceWrites keeps force-written substates of deleted partitions so a
	// revert can restore them.
	forceWrites map[common.SubstateAddress]*loadedSubstate
	locks       map[LockHandle]heldLock
	nextHandle  LockHandle
}

// NewTrack creates an empty track reading committed substates from the
// given reader.
func NewTrack(reader SubstateReader) *Track {
	return &Track{
		reader:            reader,
		substates:         map[common.SubstateAddress]*loadedSubstate{},
		deletedPartitions: map[common.PartitionKey]struct{}{},
		forceWrites:       map[common.SubstateAddress]*loadedSubstate{},
		locks:             map[LockHandle]heldLock{},
	}
}

// AcquireLock locks the given substate, loading it from the underlying reader
// if needed. It fails with a *TrackError of kind ErrNotFound if the substate
// does not exist, ErrSubstateLocked if the lock conflicts with a held lock,
// and ErrLockUnmodifiedBaseOnNewSubstate or ErrLockUnmodifiedBaseOnUpdatedSubstate
// if UnmodifiedBase is requested but the substate has been created or
// updated in this transaction. Other errors are I/O errors of the reader.
func (t *Track) AcquireLock(address common.SubstateAddress, flags LockFlags) (LockHandle, error) {
	substate, err := t.load(address)
	if err != nil {
		return 0, err
	}
	if substate == nil || substate.value == nil {
		return 0, newTrackError(ErrNotFound, address)
	}

	if flags.Contains(UnmodifiedBase) {
		switch substate.meta {
		case metaNew:
			return 0, newTrackError(ErrLockUnmodifiedBaseOnNewSubstate, address)
		case metaUpdated:
			return 0, newTrackError(ErrLockUnmodifiedBaseOnUpdatedSubstate, address)
		}
	}

	if flags.Contains(Mutable) {
		if substate.lock.isLocked() {
			return 0, newTrackError(ErrSubstateLocked, address)
		}
		substate.lock.write = true
	} else {
		if substate.lock.write {
			return 0, newTrackError(ErrSubstateLocked, address)
		}
		substate.lock.readers++
	}

	handle := t.nextHandle
	t.nextHandle++
	t.locks[handle] = heldLock{address: address, flags: flags}
	return handle, nil
}

func (t *Track) load(address common.SubstateAddress) (*loadedSubstate, error) {
	if substate, found := t.substates[address]; found {
		return substate, nil
	}
	if _, deleted := t.deletedPartitions[address.PartitionKey()]; deleted {
		return nil, nil
	}
	value, found, err := t.reader.GetSubstate(address)
	if err != nil {
		return nil, fmt.Errorf("failed to load substate %v: %w", address, err)
	}
	if !found {
		return nil, nil
	}
	if value == nil {
		value = []byte{}
	}
	substate := &loadedSubstate{
		value:      value,
		meta:       metaLoaded,
		oldVersion: t.reader.GetCurrentVersion(),
		original:   value,
	}
	t.substates[address] = substate
	return substate, nil
}

func (t *Track) getLocked(handle LockHandle) (heldLock, *loadedSubstate) {
	lock, found := t.locks[handle]
	if !found {
		panic(fmt.Sprintf("lock handle %d is not held", handle))
	}
	return lock, t.substates[lock.address]
}

// ReleaseLock releases the given lock. Releasing a write lock marks the
// substate as updated; if the lock was acquired with ForceWrite, the current
// value is retained as the value to restore on RevertNonForceWriteChanges.
func (t *Track) ReleaseLock(handle LockHandle) {
	lock, substate := t.getLocked(handle)
	delete(t.locks, handle)

	if !lock.flags.Contains(Mutable) {
		substate.lock.readers--
		return
	}

	substate.lock.write = false
	switch {
	case substate.meta == metaNew:
		// new substates are part of the diff anyway; force writes are not tracked
	case lock.flags.Contains(ForceWrite):
		substate.meta = metaUpdated
		substate.forced = true
		substate.snapshot = substate.value
	case substate.meta == metaLoaded:
		substate.meta = metaUpdated
	}
}

// ReadSubstate returns the current value of the locked substate. The result
// must not be modified. A substate deleted through the given handle reads
// as nil.
func (t *Track) ReadSubstate(handle LockHandle) []byte {
	_, substate := t.getLocked(handle)
	return substate.value
}

// WriteSubstate updates the value of the locked substate. The handle must
// have been acquired as Mutable.
func (t *Track) WriteSubstate(handle LockHandle, value []byte) {
	lock, substate := t.getLocked(handle)
	if !lock.flags.Contains(Mutable) {
		panic(fmt.Sprintf("write to substate %v through read-only lock", lock.address))
	}
	if value == nil {
		value = []byte{}
	}
	substate.value = value
}

// DeleteSubstate removes the locked substate. The handle must have been
// acquired as Mutable and remains valid until released.
func (t *Track) DeleteSubstate(handle LockHandle) {
	lock, substate := t.getLocked(handle)
	if !lock.flags.Contains(Mutable) {
		panic(fmt.Sprintf("delete of substate %v through read-only lock", lock.address))
	}
	substate.value = nil
}

// InsertSubstate creates a new substate in this transaction. The address
// must not refer to a substate present in this transaction.
func (t *Track) InsertSubstate(address common.SubstateAddress, value []byte) {
	if value == nil {
		value = []byte{}
	}
	substate, found := t.substates[address]
	if !found {
		t.substates[address] = &loadedSubstate{value: value, meta: metaNew}
		return
	}
	if substate.value != nil {
		panic(fmt.Sprintf("substate %v already exists", address))
	}
	if substate.lock.isLocked() {
		panic(fmt.Sprintf("substate %v is locked", address))
	}
	substate.value = value
}

// DeletePartition removes all substates of the given partition. Substates of
// the partition are no longer loaded from the reader, and the partition is
// reset when the transaction is finalized. No substate of the partition may
// be locked.
func (t *Track) DeletePartition(node common.NodeId, partition common.PartitionId) {
	key := common.PartitionKey{Node: node, Partition: partition}
	for address, substate := range t.substates {
		if address.PartitionKey() != key {
			continue
		}
		if substate.lock.isLocked() {
			panic(fmt.Sprintf("deleting partition %v with locked substate %v", key, address))
		}
		if substate.meta == metaUpdated && substate.forced {
			t.forceWrites[address] = substate
		}
		delete(t.substates, address)
	}
	t.deletedPartitions[key] = struct{}{}
}

func (t *Track) checkNoLocks(operation string) {
	if len(t.locks) > 0 {
		panic(fmt.Sprintf("%s with %d locks held", operation, len(t.locks)))
	}
}

// RevertNonForceWriteChanges rolls back all modifications of this
// transaction except for force writes. New substates and partition deletions
// are dropped, updated substates return to their loaded value, and
// force-written substates return to the value recorded by their last
// force-writing lock.
func (t *Track) RevertNonForceWriteChanges() {
	t.checkNoLocks("revert")
	for address, substate := range t.substates {
		switch {
		case substate.meta == metaNew:
			delete(t.substates, address)
		case substate.meta == metaUpdated && substate.forced:
			substate.value = substate.snapshot
		case substate.meta == metaUpdated:
			substate.value = substate.original
			substate.meta = metaLoaded
		}
	}
	for address, substate := range t.forceWrites {
		substate.value = substate.snapshot
		t.substates[address] = substate
	}
	clear(t.forceWrites)
	clear(t.deletedPartitions)
}

// Finalize drains the track into a diff. New and updated substates are
// upserted or deleted, substates which have only been read are dropped, and
// deleted partitions are reset. The second result lists the versions updated
// substates have been loaded from. The track is empty afterwards.
func (t *Track) Finalize() (*StateUpdates, map[common.SubstateAddress]common.Version) {
	t.checkNoLocks("finalize")
	updates := NewStateUpdates()
	for key := range t.deletedPartitions {
		updates.ResetPartition(key.Node, key.Partition)
	}
	versions := map[common.SubstateAddress]common.Version{}
	for address, substate := range t.substates {
		switch substate.meta {
		case metaLoaded:
			continue
		case metaNew:
			if substate.value == nil {
				continue
			}
		case metaUpdated:
			versions[address] = substate.oldVersion
		}
		if substate.value == nil {
			updates.Delete(address)
		} else {
			updates.Upsert(address, substate.value)
		}
	}
	t.substates = map[common.SubstateAddress]*loadedSubstate{}
	t.deletedPartitions = map[common.PartitionKey]struct{}{}
	t.forceWrites = map[common.SubstateAddress]*loadedSubstate{}
	return updates, versions
}

// NumLoaded returns the number of substates cached in this track.
func (t *Track) NumLoaded() int {
	return len(t.substates)
}

// NumLocks returns the number of locks currently held.
func (t *Track) NumLocks() int {
	return len(t.locks)
}
