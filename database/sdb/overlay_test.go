// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sdb

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Fantom-foundation/substatedb/backend/memory"
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/state"
	"go.uber.org/mock/gomock"
)

func keysOf(entries []Entry) []common.SubstateKey {
	res := []common.SubstateKey{}
	for _, entry := range entries {
		res = append(res, entry.Key)
	}
	return res
}

func newOverlayTest(t *testing.T) (*Store, *Overlay) {
	kv := memory.New()
	base := state.NewStateUpdates()
	base.Upsert(common.NewAddress(nodeA, 1, "a"), []byte{1})
	base.Upsert(common.NewAddress(nodeA, 1, "c"), []byte{3})
	base.Upsert(common.NewAddress(nodeA, 1, "e"), []byte{5})
	base.Upsert(common.NewAddress(nodeA, 2, "x"), []byte{6})
	base.Upsert(common.NewAddress(nodeB, 1, "y"), []byte{7})
	commit(t, kv, base)
	store := NewStore(kv)
	return store, NewOverlay(store)
}

func TestOverlay_WithoutStagedChangesReadsBase(t *testing.T) {
	store, overlay := newOverlayTest(t)
	if got, want := readAll(t, overlay, nodeA, 1), readAll(t, store, nodeA, 1); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected entries, wanted %v, got %v", want, got)
	}
	if !overlay.Updates().IsEmpty() {
		t.Errorf("fresh overlay should have no staged updates")
	}
}

func TestOverlay_StagedDeltaIsMergedWithBase(t *testing.T) {
	store, overlay := newOverlayTest(t)
	updates := state.NewStateUpdates()
	updates.Upsert(common.NewAddress(nodeA, 1, "b"), []byte{2})
	updates.Upsert(common.NewAddress(nodeA, 1, "c"), []byte{30})
	updates.Delete(common.NewAddress(nodeA, 1, "e"))
	updates.Upsert(common.NewAddress(nodeA, 1, "f"), []byte{8})
	overlay.Stage(updates)

	value, found, err := overlay.GetSubstate(common.NewAddress(nodeA, 1, "c"))
	if err != nil || !found || !reflect.DeepEqual(value, []byte{30}) {
		t.Errorf("unexpected staged value, got %v, %t, %v", value, found, err)
	}
	if _, found, _ := overlay.GetSubstate(common.NewAddress(nodeA, 1, "e")); found {
		t.Errorf("staged deletion should hide base substate")
	}
	if value, found, _ := overlay.GetSubstate(common.NewAddress(nodeA, 1, "a")); !found || !reflect.DeepEqual(value, []byte{1}) {
		t.Errorf("unchanged substate should be read from base, got %v", value)
	}

	want := []Entry{
		{Key: "a", Value: []byte{1}},
		{Key: "b", Value: []byte{2}},
		{Key: "c", Value: []byte{30}},
		{Key: "f", Value: []byte{8}},
	}
	if got := readAll(t, overlay, nodeA, 1); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected entries, wanted %v, got %v", want, got)
	}
	if got, want := keysOf(listFrom(t, overlay, nodeA, 1, "bb")), []common.SubstateKey{"c", "f"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected entries, wanted %v, got %v", want, got)
	}

	// the base is not modified
	if got := keysOf(readAll(t, store, nodeA, 1)); !reflect.DeepEqual(got, []common.SubstateKey{"a", "c", "e"}) {
		t.Errorf("base should not be modified, got %v", got)
	}
}

func TestOverlay_StagedResetHidesBase(t *testing.T) {
	_, overlay := newOverlayTest(t)
	updates := state.NewStateUpdates()
	updates.ResetPartition(nodeA, 1)
	updates.Upsert(common.NewAddress(nodeA, 1, "d"), []byte{4})
	updates.Upsert(common.NewAddress(nodeA, 1, "g"), []byte{9})
	overlay.Stage(updates)

	if _, found, _ := overlay.GetSubstate(common.NewAddress(nodeA, 1, "a")); found {
		t.Errorf("substates of reset partition should be hidden")
	}
	if got, want := keysOf(readAll(t, overlay, nodeA, 1)), []common.SubstateKey{"d", "g"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected entries, wanted %v, got %v", want, got)
	}
	if got, want := keysOf(listFrom(t, overlay, nodeA, 1, "e")), []common.SubstateKey{"g"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected entries, wanted %v, got %v", want, got)
	}
}

func TestOverlay_PartitionKeysCoverBaseAndStagedPartitions(t *testing.T) {
	_, overlay := newOverlayTest(t)
	updates := state.NewStateUpdates()
	updates.Delete(common.NewAddress(nodeA, 2, "x"))
	updates.ResetPartition(nodeB, 1)
	updates.Upsert(common.NewAddress(nodeB, 3, "z"), []byte{1})
	overlay.Stage(updates)

	iter, err := overlay.ListPartitionKeys()
	if err != nil {
		t.Fatalf("failed to list partitions: %v", err)
	}
	defer iter.Release()
	got := []common.PartitionKey{}
	for iter.Next() {
		got = append(got, iter.Partition())
	}
	want := []common.PartitionKey{
		{Node: nodeA, Partition: 1},
		{Node: nodeB, Partition: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected partitions, wanted %v, got %v", want, got)
	}
}

func TestOverlay_StagedUpdatesAreMergedForCommit(t *testing.T) {
	kv := memory.New()
	overlay := NewOverlay(NewStore(kv))

	first := state.NewStateUpdates()
	first.Upsert(common.NewAddress(nodeA, 1, "a"), []byte{1})
	first.Upsert(common.NewAddress(nodeA, 1, "b"), []byte{2})
	overlay.Stage(first)
	second := state.NewStateUpdates()
	second.Delete(common.NewAddress(nodeA, 1, "a"))
	overlay.Stage(second)

	commit(t, kv, overlay.Updates())
	if got, want := readAll(t, NewStore(kv), nodeA, 1), readAll(t, overlay, nodeA, 1); !reflect.DeepEqual(got, want) {
		t.Errorf("committed state differs from overlay, wanted %v, got %v", want, got)
	}
}

func TestOverlay_BaseErrorsArePropagated(t *testing.T) {
	ctrl := gomock.NewController(t)
	base := NewMockSubstateReader(ctrl)
	injected := errors.New("injected")
	base.EXPECT().ListEntriesFrom(nodeA, common.PartitionId(1), common.SubstateKey("")).Return(nil, injected)
	base.EXPECT().ListPartitionKeys().Return(nil, injected)

	overlay := NewOverlay(base)
	updates := state.NewStateUpdates()
	updates.Upsert(common.NewAddress(nodeA, 1, "a"), []byte{1})
	overlay.Stage(updates)

	if _, err := overlay.ListEntries(nodeA, 1); !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
	if _, err := overlay.ListPartitionKeys(); !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
}
